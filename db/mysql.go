package db

import (
	"database/sql"
	"time"

	"flic_feed/config"

	_ "github.com/go-sql-driver/mysql"
)

var (
	DB *sql.DB // 数据库连接，未配置 DSN 时为 nil
)

// Enabled 是否配置了数据库。模型快照和互动历史都依赖它，未配置时相关功能降级为不可用。
func Enabled() bool {
	return DB != nil
}

// InitMySQLWithConfig 使用配置初始化数据库连接池。DSN 为空时不连接，返回 false。
func InitMySQLWithConfig(cfg *config.Config) (bool, error) {
	if cfg.DB.DSN == "" {
		return false, nil
	}

	conn, err := sql.Open("mysql", cfg.DB.DSN)
	if err != nil {
		return false, err
	}

	// 从配置读取连接池参数，提供默认值保护
	maxOpenConns := cfg.DB.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 20
	}

	maxIdleConns := cfg.DB.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 5
	}

	connMaxLifetime := cfg.DB.ConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 60 // 分钟
	}

	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxIdleConns)
	conn.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return false, err
	}
	DB = conn
	return true, nil
}

// Close 关闭连接池
func Close() error {
	if DB == nil {
		return nil
	}
	err := DB.Close()
	DB = nil
	return err
}
