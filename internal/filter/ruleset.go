package filter

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keywords holds the phrase lists behind the universal rules. All matching is
// case-insensitive except WireMarkers.
type Keywords struct {
	WireMarkers      []string `yaml:"wire_markers"`
	PressRelease     []string `yaml:"press_release"`
	BlockedDomains   []string `yaml:"blocked_domains"`
	StockText        []string `yaml:"stock_text"`
	FinancialSources []string `yaml:"financial_sources"`
	StockTitle       []string `yaml:"stock_title"`
	Crypto           []string `yaml:"crypto"`
	OpinionTitle     []string `yaml:"opinion_title"`
	OpinionURL       []string `yaml:"opinion_url"`
	OpinionByline    []string `yaml:"opinion_byline"`
	LocalCrime       []string `yaml:"local_crime"`
	Political        []string `yaml:"political"`
	Shopping         []string `yaml:"shopping"`
	Reposters        []string `yaml:"reposters"`
}

type EntitySpec struct {
	Exempt []string      `yaml:"exempt,omitempty"`
	Rules  []KeywordRule `yaml:"rules,omitempty"`
}

// RuleSet is the configurable surface of the chain. A rules file decoded on
// top of DefaultRuleSet replaces the lists it names and adds or replaces
// entities by origin.
type RuleSet struct {
	Bypass   []string              `yaml:"bypass"`
	Keywords Keywords              `yaml:"keywords"`
	Entities map[string]EntitySpec `yaml:"entities"`
}

// Options toggles the configurable universal rules.
type Options struct {
	Shopping    bool
	LocalCrime  bool
	Reposters   bool
	EnglishOnly bool
	Detector    LanguageDetector
	// NormalizeLanguage maps a declared tag such as "en-US" to "en".
	NormalizeLanguage func(string) string
}

func DefaultOptions() Options {
	return Options{Shopping: true, LocalCrime: true}
}

// LoadRuleSet reads path over the defaults. An empty path returns the
// defaults.
func LoadRuleSet(path string) (RuleSet, error) {
	rs := DefaultRuleSet()
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return rs, nil
	}
	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read filter rules %s: %w", trimmed, err)
	}
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("parse filter rules %s: %w", trimmed, err)
	}
	return rs, nil
}

var universalNames = map[string]struct{}{
	RuleWireBoilerplate: {}, RulePressRelease: {}, RuleBlockedDomain: {}, RuleStockPrice: {},
	RuleCryptoTrading: {}, RuleOpinion: {}, RuleLocalCrime: {}, RuleShopping: {},
	RuleReposter: {}, RuleNonEnglish: {},
}

// Build compiles rs into a Chain.
func Build(rs RuleSet, opts Options) (*Chain, error) {
	k := rs.Keywords
	universal := []Rule{
		wireBoilerplateRule(k.WireMarkers),
		pressReleaseRule(k.PressRelease),
		blockedDomainRule(k.BlockedDomains),
		stockPriceRule(k.StockText, k.FinancialSources, k.StockTitle),
		cryptoTradingRule(k.Crypto),
		opinionRule(k.OpinionTitle, k.OpinionURL, k.OpinionByline),
	}
	if opts.LocalCrime {
		universal = append(universal, localCrimeRule(k.LocalCrime, k.Political))
	}
	if opts.Shopping {
		universal = append(universal, shoppingRule(k.Shopping))
	}
	if opts.Reposters {
		universal = append(universal, reposterRule(k.Reposters))
	}
	if opts.EnglishOnly {
		universal = append(universal, nonEnglishRule(opts.Detector, opts.NormalizeLanguage))
	}

	overrides := make(map[string]Entity, len(rs.Entities))
	for origin, spec := range rs.Entities {
		entity := Entity{Exempt: spec.Exempt}
		for _, name := range spec.Exempt {
			if _, ok := universalNames[name]; !ok {
				return nil, fmt.Errorf("entity %s: unknown exempt rule %q", origin, name)
			}
		}
		for _, kr := range spec.Rules {
			rule, err := kr.Compile()
			if err != nil {
				return nil, fmt.Errorf("entity %s: %w", origin, err)
			}
			entity.Rules = append(entity.Rules, rule)
		}
		overrides[origin] = entity
	}

	return NewChain(rs.Bypass, universal, overrides), nil
}

// AIKeywords are the topic terms the AI-focused collectors require.
var AIKeywords = []string{
	"artificial intelligence", "generative ai", "ai", "chatgpt", "claude",
	"microsoft copilot", "copilot", "harvey", "harvey ai", "cocounsel",
	"lexis+ ai", "westlaw precision ai", "machine learning",
	"large language model", "llm",
}

func DefaultRuleSet() RuleSet {
	matchKeywords := []string{
		"game preview", "match preview", "game recap", "match recap",
		"starting lineup", "injury report", "game day", "matchup",
		"vs.", "vs ", " v ", " @ ",
		"score", "final score", "box score", "postgame", "pregame",
		"wins", "loses", "defeats", "beats", "ties",
		"goal in", "goals in", "hat trick", "penalty kick",
		"nwsl standings", "mls standings", "table",
		"playoff bracket", "playoff preview",
	}
	soccerGovernance := []string{
		"us soccer foundation", "ussf", "board of directors", "president",
		"executive", "leadership", "governance", "policy", "lawsuit",
		"investigation", "controversy", "congress", "regulatory",
		"equal pay", "labor dispute", "cba", "collective bargaining",
		"cindy parlow cone", "parlow cone",
	}
	soccer := EntitySpec{Rules: []KeywordRule{
		{Name: "international_soccer", MatchAny: []string{
			"canada soccer", "canadian soccer", "mexico soccer", "mexican soccer",
			"fifa", "uefa", "premier league", "la liga", "bundesliga", "serie a",
			"champions league", "europa league", "world cup qualifier",
			"england national team", "spain national team", "france national team",
			"germany national team", "brazil national team", "argentina national team",
		}},
		{Name: "routine_match", MatchAny: matchKeywords, UnlessAny: soccerGovernance},
		{Name: "routine_transfer", MatchAny: []string{
			"signs with", "transferred to", "joins club", "loan deal",
			"transfer window", "free agent signing", "contract extension",
			"re-signs with", "waived by", "traded to", "acquired by",
		}, UnlessAny: soccerGovernance},
	}}
	aiTitle := EntitySpec{Rules: []KeywordRule{
		{Name: "ai_relevance", Field: FieldTitle, WholeWord: true, RequireAny: AIKeywords},
	}}

	return RuleSet{
		Bypass: []string{
			"nyt_top_news_rss",
			"wapo_national_news_rss",
			"wapo_politics_rss",
			"politico_rss",
		},
		Keywords: Keywords{
			WireMarkers: []string{"Earnings Snapshot"},
			PressRelease: []string{
				"prnewswire", "pr newswire", "business wire", "businesswire",
				"pr web", "prweb", "globenewswire", "globe newswire",
				"accesswire", "press release", "news release",
			},
			BlockedDomains: []string{
				"themarketsdaily.com", "baseballnewssource.com", "tickerreport.com", "transcriptdaily.com",
				"fox13memphis.com", "kxii.com", "whas11.com", "mynews13.com", "wfmj.com",
				"mercedsunstar.com", "myheraldreview.com",
				"yahoo.com", "msn.com", "aol.com",
				"seekingalpha.com", "marketscreener.com", "tipranks.com", "sherwood.news", "thefly.com",
				"investing.com", "benzinga.com", "zacks.com", "gurufocus.com",
				"newsbreak.com", "omnilert.com", "refreshmiami.com", "appliedclinicaltrialsonline.com",
				"morningstar.com", "sharesmagazine.co.uk", "citizenportal.ai", "securityonline.info",
				"digestwire.com", "okenergytoday.com",
				"wabe.org", "wrdw.com", "gpb.org", "10tv.com", "seattlepi.com",
				"autoblog.com", "simpleflying.com", "thetravel.com",
				"k12dive.com", "medtechdive.com", "highereddive.com",
				"itbrief.com.au", "itbrief.asia", "itbrief.co.uk", "securitybrief.com.au",
				"travelandtourworld.com", "caintravel.com",
				"kmvt.com", "knoxradio.com", "customerexperiencedive.com",
			},
			StockText: []string{
				"stock price", "share price", "stock soars", "stock plunges", "stock drops",
				"stock rises", "shares surge", "shares fall", "shares drop", "shares gain",
				"trading at", "market cap", "stock hits", "price target", "analyst rating",
				"buy rating", "sell rating", "earnings per share", "eps of", "stock ticker",
				"nasdaq:", "nyse:", "up/down today", "percentage gain", "percentage loss",
				"stock watch", "market watch", "pre-market", "after-hours trading",
			},
			FinancialSources: []string{
				"morningstar", "seekingalpha", "marketwatch", "barrons", "investopedia",
				"motley fool", "zacks", "tipranks", "gurufocus",
			},
			StockTitle: []string{
				"stock up", "stock down", "shares up", "shares down", "gains on", "drops on",
				"stock cheap", "stock expensive", "stock performs", "stock performance",
				"stock move", "stock climbs", "stock falls", "stock outlook", "stock forecast",
				"stock analysis", "stock valuation",
			},
			Crypto: []string{
				"bitcoin", "btc", "ethereum", "eth", "crypto", "cryptocurrency",
				"dogecoin", "doge", "ripple", "xrp", "litecoin", "ltc",
				"blockchain price", "altcoin", "token price", "crypto market",
				"crypto price", "crypto trading", "digital currency", "digital asset",
				"coinbase", "binance", "crypto exchange", "nft price",
				"crypto soars", "crypto plunges", "crypto drops", "crypto rises",
				"crypto surge", "crypto falls", "crypto hits", "crypto rallies",
				"bitcoin hits", "ethereum hits", "token hits",
			},
			OpinionTitle: []string{
				"opinion:", "op-ed:", "commentary:", "editorial:", "column:", "guest column",
				"my view:", "viewpoint:", "perspective:", "letter to", "letters:",
				"i believe", "in my opinion", "we need to", "it's time to",
				"why we should", "why we must",
			},
			OpinionURL: []string{
				"/opinion/", "/commentary/", "/op-ed/", "/editorial/", "/columns/",
				"/viewpoint/", "/perspective/",
			},
			OpinionByline: []string{
				"guest essay", "guest commentary", "opinion by", "editorial board",
			},
			LocalCrime: []string{
				"arrested for robbery", "arrested for burglary", "arrested for theft",
				"arrested for assault", "arrested for murder", "stabbing victim",
				"shooting victim", "robbery suspect", "burglary suspect",
			},
			Political: []string{
				"congress", "congressional", "investigation", "federal", "policy",
				"lawsuit", "senate", "house", "department of justice", "fbi",
				"regulatory", "regulation", "government", "administration",
			},
			Shopping: []string{
				"shoes on sale", "on sale for", "buy now and save", "limited time offer",
				"shop the collection", "shop now", "save up to", "discount code",
				"promo code", "coupon code", "free shipping", "best deals", "price drop",
			},
			Reposters: []string{
				"yahoo", "msn", "aol", "newsbreak", "apple news", "flipboard", "pocket", "feedly",
			},
		},
		Entities: map[string]EntitySpec{
			"delta_air_lines_rss": {Rules: []KeywordRule{
				{Name: "incident", MatchAny: []string{
					"incident", "crash", "emergency", "accident", "diverted", "grounded",
					"delayed", "cancellation", "mechanical issue", "safety concern",
					"investigation", "turbulence", "forced landing", "engine failure",
					"medical emergency", "unruly passenger",
				}},
				{Name: "route_announcement", MatchAny: []string{
					"new route", "adds service", "launches flight", "new destination",
					"expands service", "adds flight", "inaugural flight", "direct flight to",
					"nonstop service", "new nonstop", "announces service", "begins service",
					"new service to", "daily flights to", "seasonal flights",
					"expanding service", "adding service", "route expansion", "flight schedule",
					"begins flying", "starts flying", "will fly to", "flying to",
				}},
			}},
			"tiktok_rss": {Rules: []KeywordRule{
				{Name: "influencer", MatchAny: []string{
					"tiktok trend", "viral tiktok", "tiktok challenge", "tiktok star",
					"tiktok influencer", "tiktok creator", "tiktok video shows",
					"tiktok users are", "on tiktok", "tiktok sensation", "tiktok famous",
					"tiktok personality", "went viral", "trending on tiktok",
				}},
				{Name: "not_substantive", RequireAny: []string{
					"ban", "regulation", "lawsuit", "congress", "data privacy", "security",
					"bytedance", "acquisition", "policy",
				}},
			}},
			"us_soccer_foundation_rss": soccer,
			"cindy_parlow_cone_rss":    soccer,
			"stubhub_rss": {Rules: []KeywordRule{
				{Name: "ticket_guide", MatchAny: []string{
					"how to get tickets", "how to buy", "where to buy tickets",
					"ticket prices for", "cheapest tickets", "ticket deals", "get tickets to",
				}},
				{Name: "event_coverage", MatchAny: []string{
					"game preview", "game recap", "match preview", "match recap",
					"starting lineup", "injury report", "game day", "matchup",
					"vs.", "vs ", " v ", " @ ",
					"score", "final score", "box score", "play-by-play",
					"postgame", "pregame", "halftime", "overtime",
					"wins", "loses", "defeats", "beats",
					"touchdown", "home run", "goal", "basket",
					"playoff", "championship game", "world series", "super bowl",
					"nba game", "nfl game", "mlb game", "nhl game", "mls game",
					"concert review", "concert recap", "setlist",
					"performs at", "performed at", "performance at",
					"takes the stage", "opening act", "headliner",
					"tour stops", "tour date", "concert venue",
					"live performance", "live show", "sold out show",
					"encore", "acoustic set",
					"event recap", "event review", "event highlights",
					"what happened at", "photos from", "watch highlights",
				}, UnlessAny: []string{
					"stubhub", "fees", "pricing", "service charge", "platform",
					"marketplace", "resale", "secondary market", "ticket sales",
					"ticket platform", "ticket marketplace", "dynamic pricing",
					"all-in pricing", "transparency", "price guarantee",
					"ticket protection", "fanprotect", "customer service",
					"refund policy", "ticket delivery", "mobile tickets",
					"stubhub ceo", "stubhub lawsuit", "stubhub settlement",
					"stubhub acquisition", "stubhub merger", "stubhub revenue",
				}},
			}},
			"google_rss": {Rules: []KeywordRule{
				{Name: "consumer_review", MatchAny: []string{
					"pixel review", "pixel phone review", "nest review", "chromecast review",
					"google home review", "fitbit review", "pixel watch review",
					"pixel buds review", "pixelbook review", "stadia review",
					"review:", "hands-on:", "unboxing", "first look:",
					"best pixel cases", "best pixel accessories", "tips and tricks",
				}},
				{Name: "minor_update", MatchAny: []string{
					"google maps adds", "google maps update", "new google maps feature",
					"gmail adds", "gmail update", "new gmail feature",
					"google photos adds", "google photos update",
					"google drive adds", "google drive update",
					"chrome adds", "chrome update", "new chrome feature",
					"google search adds", "google search now lets",
					"google app update", "google play store update",
					"android update available", "new emoji", "new stickers",
					"google doodle", "shopping tab", "inspirational images tab",
				}, UnlessAny: []string{
					"antitrust", "lawsuit", "department of justice", "doj", "ftc",
					"regulation", "regulatory", "congress", "senate", "house",
					"ai policy", "gemini", "google ai", "deepmind", "openai",
					"acquisition", "merger", "partnership", "earnings", "revenue",
					"layoff", "restructuring", "ceo", "executive", "sundar pichai",
					"privacy", "data breach", "security", "investigation",
				}},
			}},
			"waymo_rss": {Rules: []KeywordRule{
				{Name: "minor_incident", MatchAny: []string{
					"kills cat", "killed cat", "hit cat", "struck cat",
					"kills dog", "killed dog", "hit dog", "struck dog",
					"minor accident", "minor collision", "fender bender",
					"traffic cone", "construction cone", "blocked by",
					"confused by", "stuck in traffic", "blocking traffic",
					"honking at", "honked at", "drives too slow",
				}},
				{Name: "product_review", MatchAny: []string{
					"review:", "hands-on:", "first ride:", "we rode in",
					"i rode in", "test drive", "test ride", "my experience",
					"what it's like", "pros and cons", "impressions",
					"video review", "ride along", "demonstration",
				}, UnlessAny: []string{
					"permit", "approval", "regulatory", "dmv", "cpuc",
					"expansion", "launch", "new city", "new market",
					"partnership", "acquisition", "funding", "investment",
					"lawsuit", "investigation", "crash", "fatality",
					"freeway", "highway", "autonomous vehicle regulation",
					"safety report", "disengagement report", "audit",
				}},
			}},
			"albemarle_rss": {Rules: []KeywordRule{
				{Name: "geographic", MatchAny: []string{
					"albemarle county", "albemarle sound", "albemarle, nc", "albemarle, n.c.",
					"city of albemarle", "albemarle high school", "albemarle road",
					"stanly county", "charlottesville",
				}, UnlessAny: []string{"albemarle corp", "albemarle corporation", "lithium"}},
				{Name: "business_context", WholeWord: true, RequireAny: []string{
					"albemarle corp", "albemarle corporation", "lithium", "alb", "nyse: alb",
					"specialty chemicals", "chemical", "chemicals", "battery", "batteries",
					"mining", "refinery", "earnings", "revenue", "kent masters", "shareholders",
				}},
			}},
			"coinbase_rss":      {Exempt: []string{RuleStockPrice, RuleCryptoTrading}},
			"meltwater":         aiTitle,
			"meltwater_webhook": aiTitle,
			"newsletter_rss": {Rules: []KeywordRule{
				{Name: "ai_relevance", WholeWord: true, RequireAny: AIKeywords},
			}},
		},
	}
}
