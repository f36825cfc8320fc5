package config

import (
	"github.com/go-viper/mapstructure/v2"
)

// decodeHook lets ByteSize and Duration parse their human-readable forms
// from files and environment variables.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
