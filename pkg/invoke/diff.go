package invoke

import "github.com/openfroyo/dsce/pkg/expr"

// Diff walks expected's top-level keys against actual, reporting the name
// of every key that differs. Keys starting with "_" or "$" are meta
// properties and are skipped. A sub-object that differs anywhere within
// it is reported once, by its parent key, rather than recursively listing
// every nested path — this mirrors the reference engine's get_diff.
func Diff(expected, actual expr.Value) []string {
	var changed []string
	if expected.IsNull() {
		return changed
	}
	keys, ok := expected.Keys()
	if !ok {
		return changed
	}

	for _, key := range keys {
		if len(key) > 0 && (key[0] == '_' || key[0] == '$') {
			continue
		}
		expectedVal, _ := expected.Field(key)

		if expectedVal.Kind() == expr.KindObject || expectedVal.Kind() == expr.KindSecureObject {
			actualVal, ok := actual.Field(key)
			if !ok {
				changed = append(changed, key)
				continue
			}
			if sub := Diff(expectedVal, actualVal); len(sub) > 0 {
				changed = append(changed, key)
			}
			continue
		}

		actualVal, ok := actual.Field(key)
		if !ok {
			changed = append(changed, key)
			continue
		}
		if !expr.Equal(expectedVal, actualVal) {
			changed = append(changed, key)
		}
	}
	return changed
}
