package domain

type DashboardData struct {
	SalesVolume  int    `json:"salesVolume"`
	NewCustomers int    `json:"newCustomers"`
	Refunds      int    `json:"refunds"`
	GraphData    []Sale `json:"graphData"`
}

type Sale struct {
	Date   string `json:"date"`
	Amount int    `json:"amount"`
}
