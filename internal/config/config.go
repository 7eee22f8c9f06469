package config

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/m1k1o/drmpack/internal/types"
)

type Config interface {
	Init(cmd *cobra.Command) error
	Set()
}

var enumTypes = map[reflect.Type]bool{
	reflect.TypeOf(types.KeySystem("")):    true,
	reflect.TypeOf(types.ManifestType("")): true,
}

// enumHook normalizes string enums, validation is left to the request.
func enumHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || !enumTypes[to] {
		return data, nil
	}

	s := strings.ToLower(strings.TrimSpace(data.(string)))
	return reflect.ValueOf(s).Convert(to).Interface(), nil
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.DecodeHookFuncType(enumHook))
}
