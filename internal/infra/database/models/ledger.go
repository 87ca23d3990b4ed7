package models

import (
	"time"
)

// LedgerEvent is one row of the append-only registry transaction log.
type LedgerEvent struct {
	Seq       int64     `json:"seq" gorm:"primaryKey;autoIncrement"`
	TxID      string    `json:"txId" gorm:"type:text;uniqueIndex"`
	Kind      string    `json:"kind" gorm:"type:text;not null"`
	Patient   string    `json:"patient" gorm:"type:text;index;not null"`
	Provider  string    `json:"provider" gorm:"type:text"`
	Pointer   string    `json:"pointer" gorm:"type:text"`
	Requester string    `json:"requester" gorm:"type:text"`
	CDate     time.Time `json:"cdate" gorm:"type:timestamp with time zone;not null"`
}

type KeyRecord struct {
	Patient string    `json:"patient" gorm:"primaryKey;type:text"`
	Key     string    `json:"key" gorm:"type:text;not null"`
	MDate   time.Time `json:"mdate" gorm:"type:timestamp with time zone;not null"`
}
