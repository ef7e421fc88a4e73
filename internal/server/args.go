package server

import (
	"encoding/json"
	"strings"

	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"github.com/bytedungeon/dungeon-server-go/internal/game/grid"
	"github.com/bytedungeon/dungeon-server-go/internal/game/rules"
	"google.golang.org/protobuf/types/known/structpb"
)

// args reads typed fields out of a request struct.
type args struct {
	fields map[string]*structpb.Value
}

func argsOf(req *structpb.Struct) args {
	return args{fields: req.GetFields()}
}

func (a args) has(key string) bool {
	v, ok := a.fields[key]
	if !ok {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

func (a args) str(key string) (string, error) {
	v, ok := a.fields[key]
	if !ok {
		return "", gameerr.InvalidArgument("%s is required", key)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", gameerr.InvalidArgument("%s must be a string", key)
	}
	out := strings.TrimSpace(s.StringValue)
	if out == "" {
		return "", gameerr.InvalidArgument("%s is required", key)
	}
	return out, nil
}

func (a args) optStr(key string) string {
	return a.fields[key].GetStringValue()
}

func (a args) int(key string) (int, error) {
	v, ok := a.fields[key]
	if !ok {
		return 0, gameerr.InvalidArgument("%s is required", key)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, gameerr.InvalidArgument("%s must be a number", key)
	}
	i := int(n.NumberValue)
	if float64(i) != n.NumberValue {
		return 0, gameerr.InvalidArgument("%s must be an integer", key)
	}
	return i, nil
}

func (a args) optInt(key string, def int) (int, error) {
	if !a.has(key) {
		return def, nil
	}
	return a.int(key)
}

func (a args) boolean(key string) bool {
	return a.fields[key].GetBoolValue()
}

func (a args) sessionID() (string, error) {
	return a.str("session_id")
}

func (a args) marker(key string) (grid.Marker, error) {
	s, err := a.str(key)
	if err != nil {
		return 0, err
	}
	m, err := grid.ParseMarker(s)
	if err != nil {
		return 0, gameerr.InvalidArgument("%s: %v", key, err)
	}
	return m, nil
}

func (a args) cell(rowKey, colKey string) (int, int, error) {
	row, err := a.int(rowKey)
	if err != nil {
		return 0, 0, err
	}
	col, err := a.int(colKey)
	if err != nil {
		return 0, 0, err
	}
	return row, col, nil
}

// decode converts a nested value into dst through its JSON form.
func (a args) decode(key string, dst any) error {
	raw, err := a.raw(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return gameerr.InvalidArgument("%s: %v", key, err)
	}
	return nil
}

// raw returns the JSON encoding of a nested value. A string value is taken
// as already-encoded JSON.
func (a args) raw(key string) ([]byte, error) {
	v, ok := a.fields[key]
	if !ok {
		return nil, gameerr.InvalidArgument("%s is required", key)
	}
	if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
		return []byte(s.StringValue), nil
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, gameerr.InvalidArgument("%s: %v", key, err)
	}
	return data, nil
}

var actionNames = map[string]rules.ActionKind{
	rules.ActionMove.String():       rules.ActionMove,
	rules.ActionUseItem.String():    rules.ActionUseItem,
	rules.ActionUseAbility.String(): rules.ActionUseAbility,
	rules.ActionUnequip.String():    rules.ActionUnequip,
}

// action accepts either the numeric action type or its name.
func (a args) action(key string) (rules.ActionKind, error) {
	v, ok := a.fields[key]
	if !ok {
		return 0, gameerr.InvalidArgument("%s is required", key)
	}
	if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
		kind, ok := actionNames[strings.ToLower(strings.TrimSpace(s.StringValue))]
		if !ok {
			return 0, gameerr.InvalidArgument("unknown action %q", s.StringValue)
		}
		return kind, nil
	}
	n, err := a.int(key)
	if err != nil {
		return 0, err
	}
	return rules.ParseActionKind(n)
}

// toStruct encodes v through its JSON form into a response struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return out, nil
}

// toValue encodes v through its JSON form into a single value.
func toValue(v any) (*structpb.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Value{}
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return out, nil
}

// reply builds a response from plain fields; values that structpb cannot
// hold directly go through toValue.
func reply(fields map[string]any) (*structpb.Struct, error) {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for k, v := range fields {
		pv, err := structpb.NewValue(v)
		if err != nil {
			if pv, err = toValue(v); err != nil {
				return nil, err
			}
		}
		out.Fields[k] = pv
	}
	return out, nil
}
