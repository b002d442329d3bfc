package catalog

import "time"

/*
The catalog is a record of what has been exported.
The catalog is a primitive for verifying, inventorying and auditing
data operations.
*/

// Catalog describes one export of a query result.
type Catalog struct {
	ID                  string    `json:"id"`
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	Source              string    `json:"source"`
	Query               string    `json:"query"`
	Key                 string    `json:"key"`
	Format              string    `json:"format"`
	NumSourceRecords    int       `json:"num_source_records"`
	NumRecordsProcessed int       `json:"num_records_processed"`
	Success             bool      `json:"success"`
	Error               string    `json:"error,omitempty"`
}
