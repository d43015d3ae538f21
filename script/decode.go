package script

import "github.com/mitchellh/mapstructure"

// DecodeTriggerConfig normalizes a loosely-typed trigger config payload
// (as arrives from a hand-edited JSON body, where a threshold might be
// sent as "12" instead of 12) into a TriggerConfig. Grounded on the
// upstream app's request-to-struct conversion path (runtime/converter.go),
// swapped from its flow-input shapes to TriggerConfig/TriggerRule.
func DecodeTriggerConfig(raw any) (TriggerConfig, error) {
	var cfg TriggerConfig
	if raw == nil {
		return cfg, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, err
	}
	return cfg, nil
}
