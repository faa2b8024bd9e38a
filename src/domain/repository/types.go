package repository

import "encoding/json"

// Page carries LIMIT/OFFSET paging through the repositories. Total is
// filled by the query serving the page.
type Page struct {
	Limit  int
	Offset int
	Total  int
}

// Number is the 1-based page number the offset falls on.
func (self Page) Number() int {
	if self.Limit <= 0 {
		return 1
	}
	return self.Offset/self.Limit + 1
}

// Pages is how many pages the total fills.
func (self Page) Pages() int {
	if self.Limit <= 0 {
		return 1
	}
	return (self.Total + self.Limit - 1) / self.Limit
}

func (self *Page) MarshalJSON() ([]byte, error) {
	if self == nil {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]int{
		"limit":  self.Limit,
		"offset": self.Offset,
		"total":  self.Total,
		"number": self.Number(),
		"pages":  self.Pages(),
	})
}
