package model

import "time"

type DeviceLog struct {
	ID          string    `db:"id" json:"id"`
	DeviceID    string    `db:"device_id" json:"deviceId"`
	RecordedAt  time.Time `db:"recorded_at" json:"timestamp"`
	MQ2         float64   `db:"mq2" json:"mq2"`
	MQ135       float64   `db:"mq135" json:"mq135"`
	Occupancy   float64   `db:"occupancy" json:"occupancy"`
	Circulation float64   `db:"circulation" json:"circulation"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

type CreateDeviceLogParams struct {
	DeviceID    string
	RecordedAt  time.Time
	MQ2         float64
	MQ135       float64
	Occupancy   float64
	Circulation float64
}
