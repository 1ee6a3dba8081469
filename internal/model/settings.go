package model

// RedactedSecret は公開APIがパスワードの代わりに返す伏せ字。
const RedactedSecret = "********"

// Settings はサイト全体の設定を表すシングルトンレコード。
// ファイルに永続化されるため、JSONタグを保持する。
type Settings struct {
	SiteName        string           `json:"siteName"`
	LogoText        string           `json:"logoText"`
	LogoMonogram    string           `json:"logoMonogram"`
	PrimaryColor    string           `json:"primaryColor"`
	SecondaryColor  string           `json:"secondaryColor"`
	AccentColor     string           `json:"accentColor"`
	BackgroundColor string           `json:"backgroundColor"`
	TextColor       string           `json:"textColor"`
	TextLightColor  string           `json:"textLightColor"`
	HeroTitle       string           `json:"heroTitle"`
	HeroSubtitle    string           `json:"heroSubtitle"`
	FooterText      string           `json:"footerText"`
	Database        DatabaseSettings `json:"database"`
}

// DatabaseSettings は外部データストアの接続パラメータ。
type DatabaseSettings struct {
	Host             string `json:"host"`
	Port             string `json:"port"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	DatabaseName     string `json:"databaseName"`
	ConnectionString string `json:"connectionString,omitempty"`
}

// DefaultSettings は永続化された設定が存在しない場合のデフォルト値を返す。
func DefaultSettings() Settings {
	return Settings{
		SiteName:        "TechBlog",
		LogoText:        "TechBlog",
		LogoMonogram:    "TB",
		PrimaryColor:    "#2563eb",
		SecondaryColor:  "#1e40af",
		AccentColor:     "#3b82f6",
		BackgroundColor: "#ffffff",
		TextColor:       "#1f2937",
		TextLightColor:  "#6b7280",
		HeroTitle:       "Latest Tech News & Insights",
		HeroSubtitle:    "Stay up to date with the latest technology news, tutorials, and insights from around the web.",
		FooterText:      "Your source for tech news and insights",
		Database: DatabaseSettings{
			Host:         "localhost",
			Port:         "5432",
			Username:     "postgres",
			DatabaseName: "blog",
		},
	}
}
