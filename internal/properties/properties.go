package properties

import (
	"os"
	"strconv"
)

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

func DataPath() string {
	return RootPath() + "/data"
}

func CopernicusClientIDs() string {
	return os.Getenv("COPERNICUS_CLIENT_ID")
}

func CopernicusClientSecrets() string {
	return os.Getenv("COPERNICUS_CLIENT_SECRET")
}

func CopernicusTokenUrl() string {
	return os.Getenv("COPERNICUS_TOKEN_URL")
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}

func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}

func DiscordWarnNotificationUrl() string {
	if url := os.Getenv("DISCORD_WARN_NOTIFICATION_URL"); url != "" {
		return url
	}
	return DiscordErrorNotificationUrl()
}

func MinioEndpoint() string {
	return os.Getenv("MINIO_ENDPOINT")
}

func MinioAccessKey() string {
	return os.Getenv("MINIO_ACCESS_KEY")
}

func MinioSecretKey() string {
	return os.Getenv("MINIO_SECRET_KEY")
}

func MinioUseSSL() bool {
	ssl, err := strconv.ParseBool(os.Getenv("MINIO_USE_SSL"))
	if err != nil {
		return false
	}
	return ssl
}

func Debug() bool {
	debug, _ := strconv.ParseBool(os.Getenv("BURNSEV_DEBUG"))
	return debug
}
