package request

// EnqueueDatesRequest queues explicit dates and/or an inclusive range.
type EnqueueDatesRequest struct {
	Dates []string `json:"dates"`
	From  string   `json:"from"`
	To    string   `json:"to"`
	Force bool     `json:"force"`
}
