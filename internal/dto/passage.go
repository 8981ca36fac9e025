package dto

type PassageSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Preview string `json:"preview"`
	Chars   int    `json:"chars"`
}

type PassageResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Chars int    `json:"chars"`
}

type PassageListResponse struct {
	Passages []PassageSummary `json:"passages"`
}
