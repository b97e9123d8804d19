// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/bagashp/esp32-telemetry-bot/internal/entities"
	_ "github.com/mattn/go-sqlite3"
)

// ReadingRepository defines the interface for telemetry persistence operations
type ReadingRepository interface {
	SaveLocation(reading entities.LocationReading) (int64, error)
	LatestLocation() (*entities.LocationReading, error)
	RecentLocations(n int) ([]entities.LocationReading, error)
	SaveSensor(reading entities.SensorReading) (int64, error)
	LatestSensor() (*entities.SensorReading, error)
	Close() error
}

// SQLiteReadingRepository implements ReadingRepository using SQLite,
// one table per reading kind
type SQLiteReadingRepository struct {
	db     *sql.DB
	DBPath string
}

// NewSQLiteReadingRepository creates and initializes a new SQLite repository
func NewSQLiteReadingRepository(dbPath string) (*SQLiteReadingRepository, error) {
	if dbPath == "" {
		// Set default path if not specified
		dbDir := "data"
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %v", err)
		}
		dbPath = filepath.Join(dbDir, "telemetry.db")
	}

	log.Printf("Opening database at %s", dbPath)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS gps_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		waktu DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_gps_waktu ON gps_data(waktu);
	CREATE TABLE IF NOT EXISTS sensor_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		temperature REAL,
		humidity REAL,
		waktu DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sensor_waktu ON sensor_data(waktu);`

	_, err = db.Exec(createTableSQL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	return &SQLiteReadingRepository{
		db:     db,
		DBPath: dbPath,
	}, nil
}

// Close closes the database connection
func (r *SQLiteReadingRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveLocation stores one GPS reading. The timestamp defaults to the current
// time when unset. Non-finite coordinates are rejected without persisting.
func (r *SQLiteReadingRepository) SaveLocation(reading entities.LocationReading) (int64, error) {
	if !isFinite(reading.Latitude) || !isFinite(reading.Longitude) {
		return 0, fmt.Errorf("location reading has non-finite coordinates: lat=%v lng=%v",
			reading.Latitude, reading.Longitude)
	}
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = time.Now()
	}

	res, err := r.db.Exec(
		`INSERT INTO gps_data(latitude, longitude, waktu) VALUES(?, ?, ?)`,
		reading.Latitude, reading.Longitude, reading.RecordedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert location reading: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %v", err)
	}
	return id, nil
}

// LatestLocation returns the newest GPS reading, or nil if the store is empty
func (r *SQLiteReadingRepository) LatestLocation() (*entities.LocationReading, error) {
	row := r.db.QueryRow(
		`SELECT id, latitude, longitude, waktu FROM gps_data ORDER BY waktu DESC, id DESC LIMIT 1`)

	var reading entities.LocationReading
	err := row.Scan(&reading.ID, &reading.Latitude, &reading.Longitude, &reading.RecordedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest location: %v", err)
	}
	return &reading, nil
}

// RecentLocations returns up to n GPS readings, newest first
func (r *SQLiteReadingRepository) RecentLocations(n int) ([]entities.LocationReading, error) {
	rows, err := r.db.Query(
		`SELECT id, latitude, longitude, waktu FROM gps_data ORDER BY waktu DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent locations: %v", err)
	}
	defer rows.Close()

	var result []entities.LocationReading
	for rows.Next() {
		var reading entities.LocationReading
		if err := rows.Scan(&reading.ID, &reading.Latitude, &reading.Longitude, &reading.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		result = append(result, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %v", err)
	}

	return result, nil
}

// SaveSensor stores one sensor reading. At least one of the two fields must
// be present, and present fields must be finite.
func (r *SQLiteReadingRepository) SaveSensor(reading entities.SensorReading) (int64, error) {
	if reading.Temperature == nil && reading.Humidity == nil {
		return 0, fmt.Errorf("sensor reading has no numeric fields")
	}
	if reading.Temperature != nil && !isFinite(*reading.Temperature) {
		return 0, fmt.Errorf("sensor reading has non-finite temperature: %v", *reading.Temperature)
	}
	if reading.Humidity != nil && !isFinite(*reading.Humidity) {
		return 0, fmt.Errorf("sensor reading has non-finite humidity: %v", *reading.Humidity)
	}
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = time.Now()
	}

	res, err := r.db.Exec(
		`INSERT INTO sensor_data(temperature, humidity, waktu) VALUES(?, ?, ?)`,
		nullableFloat(reading.Temperature), nullableFloat(reading.Humidity), reading.RecordedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sensor reading: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %v", err)
	}
	return id, nil
}

// LatestSensor returns the newest sensor reading, or nil if the store is empty
func (r *SQLiteReadingRepository) LatestSensor() (*entities.SensorReading, error) {
	row := r.db.QueryRow(
		`SELECT id, temperature, humidity, waktu FROM sensor_data ORDER BY waktu DESC, id DESC LIMIT 1`)

	var reading entities.SensorReading
	var temperature, humidity sql.NullFloat64
	err := row.Scan(&reading.ID, &temperature, &humidity, &reading.RecordedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest sensor reading: %v", err)
	}
	if temperature.Valid {
		reading.Temperature = &temperature.Float64
	}
	if humidity.Valid {
		reading.Humidity = &humidity.Float64
	}
	return &reading, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
