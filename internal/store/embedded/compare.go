package embedded

import (
	"bytes"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// typeRank orders values of different types the way MongoDB sorts them.
func typeRank(v interface{}) int {
	switch v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return 1
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, primitive.Decimal128:
		return 2
	case string, primitive.Symbol:
		return 3
	case bson.M, bson.D, map[string]interface{}:
		return 4
	case bson.A, []interface{}:
		return 5
	case primitive.Binary, []byte:
		return 6
	case primitive.ObjectID:
		return 7
	case bool:
		return 8
	case primitive.DateTime, time.Time:
		return 9
	case primitive.Timestamp:
		return 10
	case primitive.Regex:
		return 11
	}
	return 12
}

func toFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func toTime(val interface{}) (time.Time, bool) {
	switch v := val.(type) {
	case primitive.DateTime:
		return v.Time(), true
	case time.Time:
		return v, true
	}
	return time.Time{}, false
}

func toString(val interface{}) (string, bool) {
	switch v := val.(type) {
	case string:
		return v, true
	case primitive.Symbol:
		return string(v), true
	}
	return "", false
}

// compareValues returns -1, 0 or 1. comparable is false when the values
// belong to different type classes; the result then orders by type rank.
func compareValues(a, b interface{}) (result int, comparable bool) {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1, false
		}
		return 1, false
	}

	switch ra {
	case 1:
		return 0, true
	case 2:
		fa, _ := toFloat64(a)
		fb, _ := toFloat64(b)
		return cmpOrdered(fa, fb), true
	case 3:
		sa, _ := toString(a)
		sb, _ := toString(b)
		return strings.Compare(sa, sb), true
	case 7:
		ia := a.(primitive.ObjectID)
		ib := b.(primitive.ObjectID)
		return bytes.Compare(ia[:], ib[:]), true
	case 8:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0, true
		case !ba:
			return -1, true
		default:
			return 1, true
		}
	case 9:
		ta, _ := toTime(a)
		tb, _ := toTime(b)
		return ta.Compare(tb), true
	}

	if reflect.DeepEqual(a, b) {
		return 0, true
	}
	return 0, false
}

func cmpOrdered(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// equal reports value equality with numeric types unified.
func equal(a, b interface{}) bool {
	if c, ok := compareValues(a, b); ok {
		if c != 0 {
			return false
		}
		r := typeRank(a)
		if r <= 3 || r == 7 || r == 8 || r == 9 {
			return true
		}
		return reflect.DeepEqual(a, b)
	}
	return false
}
