package models

// DownloadLog is one recorded download; CountryCode stays empty until the
// geolocation backfill resolves the IP.
type DownloadLog struct {
	ID          int64
	IPAddress   string
	CountryCode string
}
