package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// streamObjects decodes r as a sequence of top-level JSON values and calls emit
// for every object it contains. Three shapes are accepted, in any mix:
//
//   - newline-delimited objects, as in the event logs
//   - a single object per file, as in the song metadata
//   - an array of objects
//
// Numbers are decoded as json.Number so integer precision survives until the
// column type is known. Non-object array elements are skipped.
func streamObjects(ctx context.Context, r io.Reader, emit func(map[string]any) error) (int, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("json: value %d: %w", n+1, err)
		}
		switch t := v.(type) {
		case map[string]any:
			n++
			if err := emit(t); err != nil {
				return n, err
			}
		case []any:
			for _, elem := range t {
				obj, ok := elem.(map[string]any)
				if !ok {
					continue
				}
				n++
				if err := emit(obj); err != nil {
					return n, err
				}
			}
		default:
			return n, fmt.Errorf("json: value %d: unsupported type %T (want object or array)", n+1, v)
		}
	}
}
