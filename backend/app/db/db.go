// Package db opens the account database.
package db

import (
	"fmt"
	"time"

	"taskrelay/backend/app/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Driver   string
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

func (c Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "", "sqlite":
		return sqlite.Open(c.Path + "?_busy_timeout=5000"), nil
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.DBName)
		return mysql.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported driver %q", c.Driver)
}

// Open connects, sizes the pool for the driver and migrates the schema.
func Open(cfg Config) (*gorm.DB, error) {
	d, err := cfg.dialector()
	if err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name(), err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if d.Name() == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := gdb.AutoMigrate(&models.User{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return gdb, nil
}
