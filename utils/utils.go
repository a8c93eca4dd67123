package utils

import "encoding/json"

// Obj2JSONMap converts obj to its generic JSON form. Maps decoded from
// fixtures are returned as is.
func Obj2JSONMap(obj interface{}) map[string]interface{} {
	if m, ok := obj.(map[string]interface{}); ok {
		return m
	}
	m := make(map[string]interface{})
	bs, _ := json.Marshal(obj)
	json.Unmarshal(bs, &m)
	return m
}
