package common

import (
	"fmt"
	"io/ioutil"
	"strings"

	"gopkg.in/yaml.v2"
)

// Validator lets a config struct veto its values after unmarshalling.
type Validator interface{ Validate() []error }

// LoadConfig reads a yaml file laid out as app -> env -> settings and
// unmarshals the subtree for the given app and env into config. When config
// implements Validator the gathered errors are returned as one.
func LoadConfig(app, env, configFile string, config interface{}) error {
	raw, err := ioutil.ReadFile(configFile)
	if err != nil {
		return err
	}
	var appConfigs map[string]map[string]interface{}
	if err := yaml.Unmarshal(raw, &appConfigs); err != nil {
		return err
	}
	configs, ok := appConfigs[app]
	if !ok {
		return fmt.Errorf("ensure config is for %s", app)
	}
	envConfig, ok := configs[env]
	if !ok {
		return fmt.Errorf("missing config for %s", env)
	}
	subtree, err := yaml.Marshal(envConfig)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(subtree, config); err != nil {
		return err
	}
	if v, ok := config.(Validator); ok {
		if errs := v.Validate(); len(errs) > 0 {
			all := make([]string, 0, len(errs))
			for _, e := range errs {
				all = append(all, e.Error())
			}
			return fmt.Errorf(strings.Join(all, " | "))
		}
	}
	return nil
}
