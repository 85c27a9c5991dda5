package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	MySQL      MySQLConfig      `mapstructure:"mysql"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Commission CommissionConfig `mapstructure:"commission"`
	Pool       PoolConfig       `mapstructure:"pool"`
	Business   BusinessConfig   `mapstructure:"business"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release，release 下关闭模拟完成接口
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	CommissionSettled string `mapstructure:"commission_settled"`
}

// CommissionConfig 佣金规则配置
//
// 【重要】比例表和策略开关全部走配置，不写死在代码里：
// 历史上存在过两套推荐佣金口径（无条件按层发 / 按活跃+直推人数资格发），
// 这里作为策略选项保留，默认 qualified（与线上口径一致）
type CommissionConfig struct {
	ReferralPercent float64   `mapstructure:"referral_percent"` // 推荐计划全局比例，通常 100
	Levels          []float64 `mapstructure:"levels"`           // 各层比例表，超出部分沿用最后一档
	LevelDepth      int       `mapstructure:"level_depth"`      // 推荐佣金最大层数
	AffiliatePolicy string    `mapstructure:"affiliate_policy"` // qualified / flat
}

type PoolConfig struct {
	Policy string `mapstructure:"policy"` // highest / sequential
}

type BusinessConfig struct {
	PaymentTimeoutMinutes int `mapstructure:"payment_timeout_minutes"`
	MaxRetryCount         int `mapstructure:"max_retry_count"`
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
