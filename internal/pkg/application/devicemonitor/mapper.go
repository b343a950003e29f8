package devicemonitor

import (
	"encoding/json"
)

func MapTo[TTo any](v any) (TTo, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return *new(TTo), err
	}
	to := new(TTo)
	err = json.Unmarshal(b, to)
	if err != nil {
		return *new(TTo), err
	}
	return *to, nil
}

// mapAll maps every element of from and never returns a nil slice on success.
func mapAll[TTo any, TFrom any](from []TFrom) ([]TTo, error) {
	result := make([]TTo, 0, len(from))

	for _, f := range from {
		to, err := MapTo[TTo](f)
		if err != nil {
			return nil, err
		}
		result = append(result, to)
	}

	return result, nil
}
