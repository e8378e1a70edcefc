/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// JsonObject is a JSON column mapped to a map. It is stored as JSON text so
// that the same value round-trips through json, jsonb and TEXT columns.
type JsonObject map[string]interface{}

// Value implements driver.Valuer for JsonObject.
func (j JsonObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JsonObject.
func (j *JsonObject) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("json object: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*j = nil
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}
	*j = obj
	return nil
}

// Equal compares two objects by their JSON encoding, so numbers decoded as
// float64 compare equal to the ints they were saved from.
func (j JsonObject) Equal(other JsonObject) bool {
	if len(j) == 0 && len(other) == 0 {
		return true
	}
	a, errA := normalizeJSON(j)
	b, errB := normalizeJSON(other)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// String renders the keys in sorted order.
func (j JsonObject) String() string {
	if len(j) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(j))
	for k := range j {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, j[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func normalizeJSON(j JsonObject) (interface{}, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	var out interface{}
	err = json.Unmarshal(b, &out)
	return out, err
}
