package model

// Item is a tracked unit of work with the values known at ingestion time.
type Item struct {
	ExternalID     string `json:"external_id"`
	Title          string `json:"title"`
	PointsAtIngest string `json:"points_at_ingest"`
	StatusAtIngest string `json:"status_at_ingest"`
	ID             int64  `json:"id"`
}
