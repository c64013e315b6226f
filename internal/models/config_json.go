package models

import (
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ConfigJSON holds a partial bot config. Postgres keeps it as jsonb, Mongo as an
// embedded document; older Mongo rows may carry it as a JSON string or binary.
type ConfigJSON []byte

func (ConfigJSON) GormDataType() string { return "json" }

func (c ConfigJSON) Value() (driver.Value, error) {
	if len(c) == 0 {
		return nil, nil
	}
	return string(c), nil
}

func (c *ConfigJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = nil
	case []byte:
		*c = append(ConfigJSON(nil), v...)
	case string:
		*c = ConfigJSON(v)
	default:
		return fmt.Errorf("config json: unsupported scan type %T", src)
	}
	return nil
}

// MarshalJSON emits null for empty or malformed content so a bad row never
// breaks encoding of the whole bot.
func (c ConfigJSON) MarshalJSON() ([]byte, error) {
	if len(c) == 0 || !json.Valid(c) {
		return []byte("null"), nil
	}
	return []byte(c), nil
}

func (c *ConfigJSON) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = nil
		return nil
	}
	*c = append(ConfigJSON(nil), b...)
	return nil
}

func (c ConfigJSON) MarshalBSONValue() (bsontype.Type, []byte, error) {
	var doc map[string]any
	if len(c) == 0 || json.Unmarshal(c, &doc) != nil || doc == nil {
		return bson.TypeNull, nil, nil
	}
	return bson.MarshalValue(doc)
}

func (c *ConfigJSON) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeNull, bson.TypeUndefined:
		*c = nil
		return nil
	case bson.TypeString:
		*c = ConfigJSON(rv.StringValue())
		return nil
	case bson.TypeBinary:
		_, b := rv.Binary()
		*c = append(ConfigJSON(nil), b...)
		return nil
	case bson.TypeEmbeddedDocument:
		v, err := bsonToPlain(rv)
		if err != nil {
			return err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		*c = b
		return nil
	default:
		return fmt.Errorf("config json: cannot decode BSON %s", t)
	}
}

// bsonToPlain maps BSON onto the types encoding/json writes naturally, so a
// shell-inserted 30 (a double) still reads back as 30.
func bsonToPlain(rv bson.RawValue) (any, error) {
	switch rv.Type {
	case bson.TypeEmbeddedDocument:
		elems, err := rv.Document().Elements()
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(elems))
		for _, e := range elems {
			v, err := bsonToPlain(e.Value())
			if err != nil {
				return nil, err
			}
			out[e.Key()] = v
		}
		return out, nil
	case bson.TypeArray:
		vals, err := rv.Array().Values()
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(vals))
		for _, v := range vals {
			p, err := bsonToPlain(v)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	case bson.TypeDouble:
		return rv.Double(), nil
	case bson.TypeInt32:
		return rv.Int32(), nil
	case bson.TypeInt64:
		return rv.Int64(), nil
	case bson.TypeString:
		return rv.StringValue(), nil
	case bson.TypeBoolean:
		return rv.Boolean(), nil
	case bson.TypeNull, bson.TypeUndefined:
		return nil, nil
	case bson.TypeDateTime:
		return rv.Time().UTC().Format(time.RFC3339), nil
	case bson.TypeBinary:
		_, b := rv.Binary()
		return base64.StdEncoding.EncodeToString(b), nil
	default:
		return rv.String(), nil
	}
}
