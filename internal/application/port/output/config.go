package output

// ConfigPort supplies secrets that never go into the config file.
type ConfigPort interface {
	AppEnv() string
	MustGet(key string) string
}
