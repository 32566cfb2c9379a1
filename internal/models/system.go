package models

import "time"

// RequestLog is one audited API call. Rows are written by the request-logging
// middleware and never updated afterwards.
type RequestLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Method       string    `gorm:"size:10;index;not null" json:"method"`
	Path         string    `gorm:"index;not null" json:"path"`
	IPAddress    string    `gorm:"size:45" json:"ipAddress,omitempty"`
	UserAgent    string    `gorm:"type:text" json:"userAgent,omitempty"`
	UserID       *uint     `gorm:"index" json:"userId,omitempty"`
	StatusCode   int       `gorm:"index" json:"statusCode"`
	ResponseTime int       `json:"responseTime"`
	RequestBody  string    `gorm:"type:text" json:"requestBody,omitempty"`
	ResponseBody string    `gorm:"type:text" json:"responseBody,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
	User         *User     `json:"user,omitempty"`
}

// Session is one issued JWT, keyed by its jti claim. Logout revokes the row,
// which kills the token before its exp.
type Session struct {
	JTI       string     `gorm:"primaryKey;size:64" json:"jti"`
	UserID    uint       `gorm:"index;not null" json:"userId"`
	ExpiresAt time.Time  `gorm:"not null" json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Migration records one applied schema step.
type Migration struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Migration string `gorm:"uniqueIndex;not null" json:"migration"`
	Batch     int    `gorm:"not null" json:"batch"`
}

// CacheEntry is one row of the DB-backed cache. Expiration is a unix
// timestamp; expired rows count as misses until swept.
type CacheEntry struct {
	Key        string `gorm:"primaryKey;column:key;size:255" json:"key"`
	Value      string `gorm:"type:text;not null" json:"value"`
	Expiration int64  `gorm:"index;not null" json:"expiration"`
}

func (CacheEntry) TableName() string { return "cache" }

// Job is one pending queue entry.
type Job struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Queue       string    `gorm:"index;not null;default:default" json:"queue"`
	Payload     string    `gorm:"type:text;not null" json:"payload"`
	Attempts    int       `gorm:"not null;default:0" json:"attempts"`
	AvailableAt time.Time `gorm:"index;not null" json:"availableAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FailedJob holds a job that exhausted its attempts, with the error that
// killed it.
type FailedJob struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Queue     string    `gorm:"not null" json:"queue"`
	Payload   string    `gorm:"type:text;not null" json:"payload"`
	Exception string    `gorm:"type:text" json:"exception"`
	FailedAt  time.Time `gorm:"index;not null" json:"failedAt"`
}
