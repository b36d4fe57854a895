package config

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`
	// 管理令牌，置空时关闭账户开通接口
	AdminToken string `mapstructure:"admin_token"`

	// 数据库配置
	DBType            string `mapstructure:"db_type"`
	DBHost            string `mapstructure:"db_host"`
	DBPort            int    `mapstructure:"db_port"`
	DBUsername        string `mapstructure:"db_username"`
	DBPassword        string `mapstructure:"db_password"`
	DBName            string `mapstructure:"db_name"`
	DBFilePath        string `mapstructure:"db_file_path"`
	DBMaxOpenConns    int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int    `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int    `mapstructure:"db_conn_max_lifetime"`

	// 存储配置
	StorageType      string `mapstructure:"storage_type"`
	StorageLocalPath string `mapstructure:"storage_local_path"`

	MinioEndpoint        string `mapstructure:"minio_endpoint"`
	MinioAccessKeyID     string `mapstructure:"minio_access_key_id"`
	MinioSecretAccessKey string `mapstructure:"minio_secret_access_key"`
	MinioBucketName      string `mapstructure:"minio_bucket_name"`
	MinioUseSSL          bool   `mapstructure:"minio_use_ssl"`

	WebDAVURL      string `mapstructure:"webdav_url"`
	WebDAVUsername string `mapstructure:"webdav_username"`
	WebDAVPassword string `mapstructure:"webdav_password"`
	WebDAVRootPath string `mapstructure:"webdav_root_path"`

	// 缓存提供者配置
	CacheType          string `mapstructure:"cache_type"`
	CacheMaxMemoryMB   int64  `mapstructure:"cache_max_memory_mb"`
	CacheVariantTTL    int    `mapstructure:"cache_variant_ttl"`
	CacheRedisAddr     string `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string `mapstructure:"cache_redis_password"`
	CacheRedisDB       int    `mapstructure:"cache_redis_db"`

	// 限流配置
	RateLimitApiRPS     float64       `mapstructure:"rate_limit_api_rps"`
	RateLimitApiBurst   int           `mapstructure:"rate_limit_api_burst"`
	RateLimitImageRPS   float64       `mapstructure:"rate_limit_image_rps"`
	RateLimitImageBurst int           `mapstructure:"rate_limit_image_burst"`
	RateLimitExpireTime time.Duration `mapstructure:"rate_limit_expire_time"`

	// 转换限制
	CodecBackend          string        `mapstructure:"codec_backend"`
	TransformMaxDimension int           `mapstructure:"transform_max_dimension"`
	TransformMaxQuality   int           `mapstructure:"transform_max_quality"`
	TransformMaxOutputMB  int64         `mapstructure:"transform_max_output_mb"`
	TransformSignTTL      time.Duration `mapstructure:"transform_sign_ttl"`
	TransformCodecTimeout time.Duration `mapstructure:"transform_codec_timeout"`

	// 上传配置
	UploadPresignTTL time.Duration `mapstructure:"upload_presign_ttl"`

	// Worker 配置
	WorkerCount     int `mapstructure:"worker_count"`
	WorkerQueueSize int `mapstructure:"worker_queue_size"`

	// 套餐限额，key 为套餐名
	Plans map[string]PlanLimits `mapstructure:"-"`
}

// PlanLimits 单个套餐的限额
type PlanLimits struct {
	StorageMB      int64 `mapstructure:"storage_mb"`
	EgressMB       int64 `mapstructure:"egress_mb"`
	TransformCount int64 `mapstructure:"transform_count"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "Info: .env file not found, using defaults and environment variables")
	} else {
		fmt.Fprintln(os.Stderr, "Info: Loaded configuration from .env file")
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}

	plans, err := decodePlans(viper.Get("plans"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to decode plan limits, %v\n", err)
		os.Exit(1)
	}
	globalConfig.Plans = plans

	// WorkerCount: -1 = 使用 CPU 线程数, 0 = 使用默认值, >0 = 使用指定值
	switch {
	case globalConfig.WorkerCount < 0:
		globalConfig.WorkerCount = runtime.GOMAXPROCS(0)
	case globalConfig.WorkerCount == 0:
		globalConfig.WorkerCount = defaultWorkerCount()
	}
}

// decodePlans 解码套餐限额表
func decodePlans(raw interface{}) (map[string]PlanLimits, error) {
	plans := make(map[string]PlanLimits)
	if raw == nil {
		return plans, nil
	}
	if err := mapstructure.Decode(raw, &plans); err != nil {
		return nil, fmt.Errorf("invalid plans configuration: %w", err)
	}
	return plans, nil
}

func defaultWorkerCount() int {
	n := runtime.NumCPU()
	if n < 2 {
		return 2
	}
	return n
}

// setDefaults 设置默认值
func setDefaults() {
	// 服务器配置默认值
	viper.SetDefault("server_host", "127.0.0.1")
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_read_timeout", "15s")
	viper.SetDefault("server_write_timeout", "30s")
	viper.SetDefault("server_idle_timeout", "120s")
	viper.SetDefault("admin_token", "")

	// 数据库配置默认值
	viper.SetDefault("db_type", "sqlite")
	viper.SetDefault("db_host", "localhost")
	viper.SetDefault("db_port", 5432)
	viper.SetDefault("db_username", "postgres")
	viper.SetDefault("db_password", "")
	viper.SetDefault("db_name", "media-hub")
	viper.SetDefault("db_file_path", "")
	viper.SetDefault("db_max_open_conns", 100)
	viper.SetDefault("db_max_idle_conns", 25)
	viper.SetDefault("db_conn_max_lifetime", 3600)

	// 存储配置默认值
	viper.SetDefault("storage_type", "local")
	viper.SetDefault("storage_local_path", "./data/blobs")
	viper.SetDefault("minio_endpoint", "localhost:9000")
	viper.SetDefault("minio_access_key_id", "")
	viper.SetDefault("minio_secret_access_key", "")
	viper.SetDefault("minio_bucket_name", "media-hub")
	viper.SetDefault("minio_use_ssl", false)
	viper.SetDefault("webdav_url", "")
	viper.SetDefault("webdav_username", "")
	viper.SetDefault("webdav_password", "")
	viper.SetDefault("webdav_root_path", "")

	// 缓存提供者配置默认值
	viper.SetDefault("cache_type", "memory")
	viper.SetDefault("cache_max_memory_mb", 256)
	viper.SetDefault("cache_variant_ttl", 3600)
	viper.SetDefault("cache_redis_addr", "localhost:6379")
	viper.SetDefault("cache_redis_password", "")
	viper.SetDefault("cache_redis_db", 0)

	// 限流配置默认值
	viper.SetDefault("rate_limit_api_rps", 30.0)
	viper.SetDefault("rate_limit_api_burst", 60)
	viper.SetDefault("rate_limit_image_rps", 100.0)
	viper.SetDefault("rate_limit_image_burst", 200)
	viper.SetDefault("rate_limit_expire_time", "10m")

	// 转换限制默认值
	viper.SetDefault("codec_backend", "vips")
	viper.SetDefault("transform_max_dimension", 6000)
	viper.SetDefault("transform_max_quality", 95)
	viper.SetDefault("transform_max_output_mb", 25)
	viper.SetDefault("transform_sign_ttl", "1h")
	viper.SetDefault("transform_codec_timeout", "30s")

	// 上传配置默认值
	viper.SetDefault("upload_presign_ttl", "15m")

	// Worker 配置默认值
	viper.SetDefault("worker_count", 0)
	viper.SetDefault("worker_queue_size", 1000)

	// 套餐限额默认值
	viper.SetDefault("plans", map[string]interface{}{
		"starter": map[string]interface{}{
			"storage_mb":      5120,
			"egress_mb":       51200,
			"transform_count": 200000,
		},
		"growth": map[string]interface{}{
			"storage_mb":      20480,
			"egress_mb":       204800,
			"transform_count": 300000,
		},
		"pro": map[string]interface{}{
			"storage_mb":      102400,
			"egress_mb":       1048576,
			"transform_count": 1500000,
		},
	})
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// MaxOutputBytes 返回转换输出大小上限（字节）
func (c *Config) MaxOutputBytes() int64 {
	return c.TransformMaxOutputMB << 20
}

// PlanFor 返回套餐限额，未知套餐回落到 starter
func (c *Config) PlanFor(plan string) PlanLimits {
	if limits, ok := c.Plans[plan]; ok {
		return limits
	}
	return c.Plans["starter"]
}
