package model

import "time"

// Attribute names carried by transaction events.
const (
	AttrStatus   = "status"
	AttrPriority = "priority"
	AttrPoints   = "points"
	AttrColumns  = "core:columns"
)

// TransactionEvent is one observed change to one attribute of one item.
// Seq is the store-assigned insertion order that breaks timestamp ties.
type TransactionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
	Attribute string    `json:"attribute"`
	NewValue  string    `json:"new_value"`
	ItemID    int64     `json:"item_id"`
	Seq       int64     `json:"seq,omitempty"`
}

// EdgeEvent records that an item is associated with a category as of ObservedAt.
// Edges are additive: membership is never withdrawn.
type EdgeEvent struct {
	ObservedAt time.Time `json:"observed_at"`
	ItemID     int64     `json:"item_id"`
	CategoryID int64     `json:"category_id"`
}

// LinkEvent records that ChildID is a child of ParentID as of ObservedAt.
// Links are additive like edges.
type LinkEvent struct {
	ObservedAt time.Time `json:"observed_at"`
	ParentID   int64     `json:"parent_id"`
	ChildID    int64     `json:"child_id"`
}
