// internal/stream/types.go
package stream

import "encoding/json"

// Category identifies one tracked feed of token mentions.
type Category string

const (
	CategoryPumpFun     Category = "pumpfun"
	CategoryDexScreener Category = "dexscreener"
)

// Account is the social profile attached to a mention.
type Account struct {
	Name           string `json:"name"`
	ScreenName     string `json:"screen_name"`
	AvatarURL      string `json:"profile_image_url_https"`
	FollowersCount int    `json:"followers_count"`
	Verified       bool   `json:"verified"`
}

// URLEntity is one link carried by a mention.
type URLEntity struct {
	DisplayURL  string `json:"display_url"`
	ExpandedURL string `json:"expanded_url"`
	URL         string `json:"url"`
}

// TokenInfo is descriptive token data pre-attached to a raw feed item.
type TokenInfo struct {
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	ImageURL         string  `json:"image_url"`
	Price            float64 `json:"price"`
	MarketCap        float64 `json:"market_cap"`
	CreatedTimestamp int64   `json:"created_timestamp"`
}

// Mention is one observed reference to a token on the social feed.
// Category is assigned by the stream client from the envelope and is
// immutable afterwards.
type Mention struct {
	ID          string
	Text        string
	CreatedAt   int64 // epoch millis
	Account     Account
	URLs        []URLEntity
	Category    Category
	Retweets    int
	Favorites   int
	Views       *int64
	Bookmarks   *int64
	MintAddress string
	TokenInfo   *TokenInfo
	Quoted      *Mention
}

// SearchConfig pairs a feed category with the URL pattern subscribed for it.
type SearchConfig struct {
	Category   Category
	URLPattern string
}

// DefaultSearchConfigs returns the two tracked venues.
func DefaultSearchConfigs() []SearchConfig {
	return []SearchConfig{
		{Category: CategoryPumpFun, URLPattern: "pump.fun/coin/"},
		{Category: CategoryDexScreener, URLPattern: "dexscreener.com/solana/"},
	}
}

// subscribeMessage is the client->server subscription frame.
type subscribeMessage struct {
	Query string `json:"query"`
	Type  string `json:"type"`
}

// envelope is the server->client message frame.
type envelope struct {
	Type      string            `json:"type"`
	QueryType Category          `json:"queryType"`
	Data      []json.RawMessage `json:"data"`
}

type rawUser struct {
	Name           string `json:"name"`
	ScreenName     string `json:"screen_name"`
	AvatarURL      string `json:"profile_image_url_https"`
	FollowersCount int    `json:"followers_count"`
	Verified       bool   `json:"verified"`
}

type rawMedia struct {
	DisplayURL  string `json:"display_url"`
	ExpandedURL string `json:"expanded_url"`
	URL         string `json:"url"`
}

type rawEntities struct {
	URLs  []URLEntity `json:"urls"`
	Media []rawMedia  `json:"media"`
}

type rawItem struct {
	IDStr          string      `json:"id_str"`
	Text           *string     `json:"text"`
	FullText       string      `json:"full_text"`
	TweetCreatedAt string      `json:"tweet_created_at"`
	User           rawUser     `json:"user"`
	Entities       rawEntities `json:"entities"`
	QuotedStatus   *rawItem    `json:"quoted_status"`
	RetweetCount   int         `json:"retweet_count"`
	FavoriteCount  int         `json:"favorite_count"`
	ViewsCount     *int64      `json:"views_count"`
	BookmarkCount  *int64      `json:"bookmark_count"`
	MintAddress    string      `json:"mint_address"`
	TokenInfo      *TokenInfo  `json:"token_info"`
}
