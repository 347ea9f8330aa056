package handlers

import (
	"github.com/jason-s-yu/nines/internal/game"
	"github.com/mitchellh/mapstructure"
)

// decodeCommand maps a raw JSON packet onto a typed command. WeaklyTypedInput lets "card" arrive
// either as a single string or as a list.
func decodeCommand(packet map[string]interface{}) (game.Command, error) {
	var cmd game.Command
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cmd,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cmd, err
	}
	if err := dec.Decode(packet); err != nil {
		return cmd, err
	}
	return cmd, nil
}
