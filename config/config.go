package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"flic_feed/models"
)

// DefaultBaseURL 上游内容服务地址
const DefaultBaseURL = "https://api.socialverseapp.com"

type Config struct {
	Server struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port" validate:"gte=0,lte=65535"`
		Addr            string `yaml:"-"` // 不从配置文件读取，而是在加载后计算
		ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
		WriteTimeoutSec int    `yaml:"write_timeout_sec"`
		IdleTimeoutSec  int    `yaml:"idle_timeout_sec"`
	} `yaml:"server"`
	Upstream struct {
		BaseURL    string `yaml:"base_url" validate:"required,url"`
		Token      string `yaml:"token" validate:"required"`
		Page       int    `yaml:"page" validate:"gte=1"`
		PageSize   int    `yaml:"page_size" validate:"gte=1"`
		MaxPages   int    `yaml:"max_pages" validate:"gte=1"` // 1 表示只取第一页
		TimeoutSec int    `yaml:"timeout_sec" validate:"gte=1"`
		Breaker    struct {
			Disabled         bool   `yaml:"disabled"`
			FailureThreshold uint32 `yaml:"failure_threshold"`
			TimeoutSec       int    `yaml:"timeout_sec"` // 熔断打开后多久进入半开
		} `yaml:"breaker"`
	} `yaml:"upstream"`
	Feed struct {
		RankWithModel bool     `yaml:"rank_with_model"`
		NeutralScore  *float64 `yaml:"neutral_score" validate:"omitempty,gte=0,lte=1"` // 不在模型物品空间内的帖子使用的分数
	} `yaml:"feed"`
	Model struct {
		Hidden1        int     `yaml:"hidden1" validate:"gte=1"`
		Hidden2        int     `yaml:"hidden2" validate:"gte=1"`
		Epochs         int     `yaml:"epochs" validate:"gte=1"`
		BatchSize      int     `yaml:"batch_size" validate:"gte=1"`
		LearningRate   float64 `yaml:"learning_rate" validate:"gt=0"`
		Corruption     float64 `yaml:"corruption" validate:"gte=0,lt=1"`
		Seed           uint64  `yaml:"seed"`
		TrainOnStart   *bool   `yaml:"train_on_start"`
		TrainingSource string  `yaml:"training_source" validate:"oneof=synthetic mysql"`
		SyntheticUsers int     `yaml:"synthetic_users" validate:"gte=1"`
		SyntheticItems int     `yaml:"synthetic_items" validate:"gte=1"`
		LookbackDays   int     `yaml:"lookback_days"` // mysql 训练数据回溯天数，0 表示全部
	} `yaml:"model"`
	Log struct {
		Level    string `yaml:"level"`
		Format   string `yaml:"format"`
		Output   string `yaml:"output"`
		FilePath string `yaml:"file_path"`
	} `yaml:"log"`

	DB struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		Username        string `yaml:"username"`
		Password        string `yaml:"password"`
		Database        string `yaml:"database"`
		Charset         string `yaml:"charset"`
		ParseTime       bool   `yaml:"parse_time"`
		DSN             string `yaml:"-"`                 // 不从配置文件读取，而是在加载后计算
		MaxOpenConns    int    `yaml:"max_open_conns"`    // 最大打开连接数
		MaxIdleConns    int    `yaml:"max_idle_conns"`    // 最大空闲连接数
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // 连接最大生命周期（分钟）
	} `yaml:"database"`
	Scheduler struct {
		RetrainEnabled   bool `yaml:"retrain_enabled"`
		CheckIntervalSec int  `yaml:"check_interval_sec"` // 调度器检查间隔（秒）
		RetrainHour      int  `yaml:"retrain_hour"`       // 每天重训的小时（0-23）
		RetrainMinute    int  `yaml:"retrain_minute"`     // 每天重训的分钟（0-59）
		KeepSnapshots    int  `yaml:"keep_snapshots"`     // 重训后保留的快照数量
	} `yaml:"scheduler"`
	RateLimit struct {
		Requests  int `yaml:"requests"`
		WindowSec int `yaml:"window_sec"`
	} `yaml:"rate_limit"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	Debug struct {
		Enabled        bool `yaml:"enabled"`          // 是否启用debug模式
		RetrainFreqSec int  `yaml:"retrain_freq_sec"` // debug模式下重训频率，单位：秒
	} `yaml:"debug"`
}

// TrainOnStart 启动时是否训练模型，未配置时为 true
func (c *Config) TrainOnStart() bool {
	return c.Model.TrainOnStart == nil || *c.Model.TrainOnStart
}

// NeutralScore 模型物品空间外帖子的排序分数，未配置时为 0.5
func (c *Config) NeutralScore() float64 {
	if c.Feed.NeutralScore == nil {
		return 0.5
	}
	return *c.Feed.NeutralScore
}

// Load 加载配置：.env → config.yaml（可用 CONFIG_FILE 指定）→ 环境变量覆盖 → 默认值 → 校验。
// 缺少访问令牌时返回 *models.ConfigurationError。
func Load() (*Config, error) {
	// 首先尝试加载.env文件中的环境变量
	_ = godotenv.Load() // 忽略错误，如果.env文件不存在，继续使用系统环境变量

	path := getenv("CONFIG_FILE", "config.yaml")

	var cfg Config
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, &models.ConfigurationError{Field: path, Reason: err.Error()}
		}
		log.Printf("Loading configuration from %s", path)
	} else {
		log.Println("配置文件不存在，从环境变量加载配置")
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv 从环境变量中加载敏感信息和部署参数
func applyEnv(cfg *Config) {
	if token := os.Getenv("FLIC_TOKEN"); token != "" {
		cfg.Upstream.Token = token
	}
	if baseURL := os.Getenv("FLIC_API_BASE_URL"); baseURL != "" {
		cfg.Upstream.BaseURL = baseURL
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	// 数据库用户名和密码
	if envUsername := os.Getenv("DATABASE_USERNAME"); envUsername != "" {
		cfg.DB.Username = envUsername
	}
	if envPassword := os.Getenv("DATABASE_PASSWORD"); envPassword != "" {
		cfg.DB.Password = envPassword
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		cfg.DB.DSN = dsn
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	cfg.Server.Addr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	setDefault(&cfg.Server.ReadTimeoutSec, 15)
	setDefault(&cfg.Server.WriteTimeoutSec, 90)
	setDefault(&cfg.Server.IdleTimeoutSec, 120)

	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultBaseURL
	}
	cfg.Upstream.BaseURL = strings.TrimRight(cfg.Upstream.BaseURL, "/")
	setDefault(&cfg.Upstream.Page, 1)
	setDefault(&cfg.Upstream.PageSize, 1000)
	setDefault(&cfg.Upstream.MaxPages, 1)
	setDefault(&cfg.Upstream.TimeoutSec, 30)
	if cfg.Upstream.Breaker.FailureThreshold == 0 {
		cfg.Upstream.Breaker.FailureThreshold = 5
	}
	setDefault(&cfg.Upstream.Breaker.TimeoutSec, 30)

	// 与启动时自举训练的规模一致：100 用户 × 500 物品，128/64 隐层，10 轮
	setDefault(&cfg.Model.Hidden1, 128)
	setDefault(&cfg.Model.Hidden2, 64)
	setDefault(&cfg.Model.Epochs, 10)
	setDefault(&cfg.Model.BatchSize, 32)
	if cfg.Model.LearningRate == 0 {
		cfg.Model.LearningRate = 0.001
	}
	if cfg.Model.TrainingSource == "" {
		cfg.Model.TrainingSource = "synthetic"
	}
	setDefault(&cfg.Model.SyntheticUsers, 100)
	setDefault(&cfg.Model.SyntheticItems, 500)

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.DB.DSN == "" && cfg.DB.Host != "" {
		if cfg.DB.Charset == "" {
			cfg.DB.Charset = "utf8mb4"
		}
		parseTime := ""
		if cfg.DB.ParseTime {
			parseTime = "&parseTime=true"
		}
		cfg.DB.DSN = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s%s",
			cfg.DB.Username,
			cfg.DB.Password,
			cfg.DB.Host,
			cfg.DB.Port,
			cfg.DB.Database,
			cfg.DB.Charset,
			parseTime)
	}

	setDefault(&cfg.Scheduler.CheckIntervalSec, 60)
	if cfg.Scheduler.RetrainHour < 0 || cfg.Scheduler.RetrainHour > 23 {
		cfg.Scheduler.RetrainHour = 3
	}
	if cfg.Scheduler.RetrainMinute < 0 || cfg.Scheduler.RetrainMinute > 59 {
		cfg.Scheduler.RetrainMinute = 0
	}
	setDefault(&cfg.Scheduler.KeepSnapshots, 5)
	setDefault(&cfg.Debug.RetrainFreqSec, 1800)

	setDefault(&cfg.RateLimit.Requests, 100)
	setDefault(&cfg.RateLimit.WindowSec, 60)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
}

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验配置，第一个失败字段转换为 ConfigurationError
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if field == "Upstream.Token" {
			return &models.ConfigurationError{Field: field, Reason: "FLIC_TOKEN is missing, set it in .env or the environment"}
		}
		return &models.ConfigurationError{Field: field, Reason: fmt.Sprintf("failed on %q (value %v)", fe.Tag(), fe.Value())}
	}
	return &models.ConfigurationError{Field: "config", Reason: err.Error()}
}

// MaskToken 日志中只显示令牌的首尾
func MaskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
