package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mvasilkovs/astrobatch/internal/flagx"
	"github.com/mvasilkovs/astrobatch/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "2h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr  string `json:"endpoint_addr"`
	DatabaseDSN   string `json:"database_dsn"`
	SecretKey     string `json:"secret_key"`
	WebhookSecret string `json:"webhook_secret"`
	AppBaseURL    string `json:"app_base_url"`
	Stage         string `json:"stage"`

	MaxBatchFiles     int            `json:"max_batch_files"`
	UploadURLExpiry   timex.Duration `json:"upload_url_expiry"`
	DownloadURLExpiry timex.Duration `json:"download_url_expiry"`

	S3AccessKey      string `json:"s3_access_key"`
	S3SecretKey      string `json:"s3_secret_key"`
	S3Region         string `json:"s3_region"`
	S3BaseEndpoint   string `json:"s3_base_endpoint"`
	S3Bucket         string `json:"s3_bucket"`
	S3ColdBucket     string `json:"s3_cold_bucket"`
	ColdStorageClass string `json:"cold_storage_class"`

	ECSClusterARN        string `json:"ecs_cluster_arn"`
	ECSTaskDefinitionARN string `json:"ecs_task_definition_arn"`
	ECSContainerName     string `json:"ecs_container_name"`
	ECSSubnetID          string `json:"ecs_subnet_id"`
	ECSSecurityGroupID   string `json:"ecs_security_group_id"`
	ECSAssignPublicIP    bool   `json:"ecs_assign_public_ip"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; when neither is set, no JSON file is loaded. An unreadable or
// invalid file panics: a half-applied config is worse than no process.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.WebhookSecret = c.WebhookSecret
	config.AppBaseURL = c.AppBaseURL
	config.Stage = c.Stage
	config.MaxBatchFiles = c.MaxBatchFiles
	config.UploadURLExpiry = time.Duration(c.UploadURLExpiry.Duration)
	config.DownloadURLExpiry = time.Duration(c.DownloadURLExpiry.Duration)
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3Bucket = c.S3Bucket
	config.S3ColdBucket = c.S3ColdBucket
	config.ColdStorageClass = c.ColdStorageClass
	config.ECSClusterARN = c.ECSClusterARN
	config.ECSTaskDefinitionARN = c.ECSTaskDefinitionARN
	config.ECSContainerName = c.ECSContainerName
	config.ECSSubnetID = c.ECSSubnetID
	config.ECSSecurityGroupID = c.ECSSecurityGroupID
	config.ECSAssignPublicIP = c.ECSAssignPublicIP
}
