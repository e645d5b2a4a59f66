// Copyright 2024-2026 Aiku AI

package config

import (
	up "go.mau.fi/util/configupgrade"
)

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "http", "address")
	helper.Copy(up.Str, "http", "read_timeout")
	helper.Copy(up.Str, "http", "write_timeout")
	helper.Copy(up.Str, "http", "idle_timeout")
	helper.Copy(up.Str, "http", "request_timeout")
	helper.Copy(up.Str, "http", "shutdown_timeout")
	helper.Copy(up.Bool, "http", "trust_forwarded_for")

	helper.Copy(up.Str, "whatsapp", "sessions_dir")
	helper.Copy(up.Str, "whatsapp", "browser")
	helper.Copy(up.Str, "whatsapp", "os_name")
	helper.Copy(up.Bool, "whatsapp", "push_notification")
	helper.Copy(up.Str, "whatsapp", "image_url")
	helper.Copy(up.Str, "whatsapp", "caption_template")
	helper.Copy(up.Str, "whatsapp", "warning")

	helper.Copy(up.Int, "pairing", "max_retries")
	helper.Copy(up.Str, "pairing", "initial_backoff")
	helper.Copy(up.Str, "pairing", "max_backoff")
	helper.Copy(up.Int|up.Float, "pairing", "backoff_multiplier")
	helper.Copy(up.Int|up.Float, "pairing", "backoff_jitter")
	helper.Copy(up.Str, "pairing", "flush_delay")
	helper.Copy(up.Str, "pairing", "flow_timeout")
	helper.Copy(up.Str, "pairing", "send_timeout")

	helper.Copy(up.Str, "upload", "backend")
	helper.Copy(up.Str, "upload", "prefix")
	helper.Copy(up.List, "upload", "age_recipients")
	helper.Copy(up.Str, "upload", "disk", "directory")
	helper.Copy(up.Str, "upload", "disk", "base_url")
	helper.Copy(up.Str, "upload", "s3", "region")
	helper.Copy(up.Str, "upload", "s3", "bucket")
	helper.Copy(up.Str, "upload", "s3", "endpoint")
	helper.Copy(up.Bool, "upload", "s3", "force_path_style")
	helper.Copy(up.Str, "upload", "s3", "access_key_id")
	helper.Copy(up.Str, "upload", "s3", "secret_access_key")
	helper.Copy(up.Str, "upload", "s3", "public_url")
	helper.Copy(up.Str, "upload", "minio", "endpoint")
	helper.Copy(up.Str, "upload", "minio", "bucket")
	helper.Copy(up.Str, "upload", "minio", "region")
	helper.Copy(up.Str, "upload", "minio", "access_key")
	helper.Copy(up.Str, "upload", "minio", "secret_key")
	helper.Copy(up.Bool, "upload", "minio", "insecure")
	helper.Copy(up.Str, "upload", "minio", "public_url")
	helper.Copy(up.Str, "upload", "azure", "account")
	helper.Copy(up.Str, "upload", "azure", "account_key")
	helper.Copy(up.Str, "upload", "azure", "endpoint")
	helper.Copy(up.Str, "upload", "azure", "container")
	helper.Copy(up.Str, "upload", "azure", "public_url")

	helper.Copy(up.Str, "rate_limit", "backend")
	helper.Copy(up.Int, "rate_limit", "limit")
	helper.Copy(up.Str, "rate_limit", "window")
	helper.Copy(up.Str, "rate_limit", "redis", "addr")
	helper.Copy(up.Str, "rate_limit", "redis", "password")
	helper.Copy(up.Int, "rate_limit", "redis", "db")
	helper.Copy(up.Str, "rate_limit", "redis", "key_prefix")

	helper.Copy(up.Str, "notify", "template")
	helper.Copy(up.Str, "notify", "matrix", "homeserver")
	helper.Copy(up.Str, "notify", "matrix", "user_id")
	helper.Copy(up.Str, "notify", "matrix", "access_token")
	helper.Copy(up.Str, "notify", "matrix", "room_id")
	helper.Copy(up.Str, "notify", "mattermost", "server_url")
	helper.Copy(up.Str, "notify", "mattermost", "token")
	helper.Copy(up.Str, "notify", "mattermost", "channel_id")

	helper.Copy(up.List, "supervisor", "restart_command")
	helper.Copy(up.Str, "supervisor", "pm2_process_name")
	helper.Copy(up.Str, "supervisor", "timeout")
	helper.Copy(up.Str, "supervisor", "cooldown")

	helper.Copy(up.Str, "telemetry", "service_name")
	helper.Copy(up.Str, "telemetry", "otlp_endpoint")
	helper.Copy(up.Bool, "telemetry", "otlp_insecure")

	helper.Copy(up.Map, "logging")
}

// Upgrader merges an existing config file into the current example config.
var Upgrader = &up.StructUpgrader{
	SimpleUpgrader: up.SimpleUpgrader(upgradeConfig),
	Blocks: [][]string{
		{"whatsapp"},
		{"pairing"},
		{"upload"},
		{"rate_limit"},
		{"notify"},
		{"supervisor"},
		{"telemetry"},
		{"logging"},
	},
	Base: ExampleConfig,
}
