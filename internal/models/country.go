// internal/models/country.go
package models

// Country is an assignable nation.
type Country struct {
	Name string `json:"name"`
	Flag string `json:"flag"`
	Code string `json:"code"`
}

// Countries is the assignable catalog. Game start deals a random permutation
// of it, one entry per active player. Its length must stay >= MaxPlayersLimit.
var Countries = []Country{
	{Name: "United States", Flag: "🇺🇸", Code: "us"},
	{Name: "Russia", Flag: "🇷🇺", Code: "ru"},
	{Name: "China", Flag: "🇨🇳", Code: "cn"},
	{Name: "Germany", Flag: "🇩🇪", Code: "de"},
	{Name: "France", Flag: "🇫🇷", Code: "fr"},
	{Name: "United Kingdom", Flag: "🇬🇧", Code: "gb"},
	{Name: "Japan", Flag: "🇯🇵", Code: "jp"},
	{Name: "India", Flag: "🇮🇳", Code: "in"},
	{Name: "Brazil", Flag: "🇧🇷", Code: "br"},
	{Name: "Canada", Flag: "🇨🇦", Code: "ca"},
}
