package db

import (
	"fmt"

	"github.com/reusedev/detect-hub/config"
	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/model"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(c *config.Config) {
	var (
		db  *gorm.DB
		err error
	)
	switch consts.DatabaseDriver(c.Database.Driver) {
	case consts.DriverSQLite:
		db, err = OpenSQLite(c.Database.SQLitePath)
	default:
		CreateDataBase(c.MySQL)
		db, err = OpenMySQL(c.MySQL)
	}
	if err != nil {
		panic(err)
	}
	if err = Migrate(db); err != nil {
		panic(err)
	}
	DB = db
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

func mysqlDSN(c config.MySQL, database string) string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local", c.Username, c.Password, c.Host, c.Port, database, charset)
}

func OpenMySQL(c config.MySQL) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(mysqlDSN(c, c.Database)), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	return db, nil
}

// CreateDataBase connects without a schema and creates the configured database if needed.
func CreateDataBase(c config.MySQL) {
	db, err := gorm.Open(mysql.Open(mysqlDSN(c, "")), gormConfig())
	if err != nil {
		panic(err)
	}
	err = db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` DEFAULT CHARACTER SET utf8mb4", c.Database)).Error
	if err != nil {
		panic(err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// OpenSQLite opens an embedded database. sqlite allows a single writer, so the
// pool is pinned to one connection.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err = db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.Tables()...)
}
