package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Mode       Mode             `toml:"-"`
	Region     string           `toml:"region"`
	Service    ServiceConfig    `toml:"service"`
	Gateway    GatewayConfig    `toml:"gateway"`
	Signer     SignerConfig     `toml:"signer"`
	Credential CredentialConfig `toml:"credential"`
	Database   DatabaseConfig   `toml:"database"`
	Endpoints  EndpointsConfig  `toml:"endpoints"`
}

type ServiceConfig struct {
	Mode        string   `toml:"mode"`
	Port        uint32   `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

type GatewayConfig struct {
	URL              string `toml:"url"`
	PrivacyPolicyURL string `toml:"privacy_policy_url"`
}

type SignerConfig struct {
	ServiceAccount  string `toml:"service_account"`
	DelegateRoleARN string `toml:"delegate_role_arn"`
	KMSSigningKey   string `toml:"kms_signing_key"`
}

type CredentialConfig struct {
	Issuer     string `toml:"issuer"`
	SecretID   string `toml:"secret_id"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

type DatabaseConfig struct {
	AttemptsTable string `toml:"attempts_table"`
}

type EndpointsConfig struct {
	AWSEndpoint    string `toml:"aws_endpoint"`
	MetadataServer string `toml:"metadata_server"`
}

func New() (*Config, error) {
	fileName := os.Getenv("CONFIG")
	var cfg Config
	if _, err := toml.DecodeFile(fileName, &cfg); err != nil {
		return nil, err
	}

	var mode Mode
	switch cfg.Service.Mode {
	case "local":
		mode = LocalMode
	case "dev", "development":
		mode = DevelopmentMode
	case "prod", "production":
		mode = ProductionMode
	default:
		return nil, fmt.Errorf("config service.mode value is invalid, must be one of \"development\", \"dev\", \"production\" or \"prod\"")
	}
	cfg.Mode = mode
	cfg.Service.Mode = mode.String()

	return &cfg, nil
}

type Mode uint32

const (
	LocalMode Mode = iota
	DevelopmentMode
	ProductionMode
)

func (m Mode) String() string {
	switch m {
	case LocalMode:
		return "local"
	case DevelopmentMode:
		return "development"
	case ProductionMode:
		return "production"
	default:
		return ""
	}
}
