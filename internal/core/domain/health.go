package domain

type PostgresStatus string

const (
	PostgresConnected    PostgresStatus = "CONNECTED"
	PostgresDisconnected PostgresStatus = "DISCONNECTED"
	PostgresConnecting   PostgresStatus = "CONNECTING"
)

type GraphStoreStatus string

const (
	GraphStoreAvailable GraphStoreStatus = "AVAILABLE"
	GraphStoreNotFound  GraphStoreStatus = "NOT_FOUND"
)

// HealthReport is the body returned by the backend health endpoint.
type HealthReport struct {
	PostgresStatus string `json:"postgres_status"`
	GraphDBStatus  string `json:"graph_db_status"`
	DocumentCount  int64  `json:"document_count"`
	ChunkCount     int64  `json:"chunk_count"`
}

// SystemHealth is the display-only health snapshot.
type SystemHealth struct {
	PostgresStatus PostgresStatus   `json:"postgres_status"`
	GraphStatus    GraphStoreStatus `json:"sqlite_status"`
	TotalDocuments int64            `json:"total_documents"`
	TotalChunks    int64            `json:"total_chunks"`
	Error          string           `json:"error,omitempty"`
}

// InitialHealth is shown before the first snapshot arrives.
func InitialHealth() SystemHealth {
	return SystemHealth{
		PostgresStatus: PostgresConnecting,
		GraphStatus:    GraphStoreNotFound,
	}
}

// DisconnectedHealth is the snapshot used when the health fetch fails.
func DisconnectedHealth(err error) SystemHealth {
	h := SystemHealth{
		PostgresStatus: PostgresDisconnected,
		GraphStatus:    GraphStoreNotFound,
	}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}

// ToSystemHealth maps a backend report onto the display structure.
func (r HealthReport) ToSystemHealth() SystemHealth {
	h := SystemHealth{
		PostgresStatus: PostgresDisconnected,
		GraphStatus:    GraphStoreNotFound,
		TotalDocuments: r.DocumentCount,
		TotalChunks:    r.ChunkCount,
	}
	if r.PostgresStatus == "OK" {
		h.PostgresStatus = PostgresConnected
	}
	if r.GraphDBStatus == "OK" {
		h.GraphStatus = GraphStoreAvailable
	}
	return h
}
