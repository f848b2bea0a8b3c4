package synthesis

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestIntegerAcceptsWholeNumbersOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{raw: "8", want: 8, wantOK: true},
		{raw: "8.0", want: 8, wantOK: true},
		{raw: "-3", want: -3, wantOK: true},
		{raw: "8.5"},
		{raw: "9223372036854775807", want: 9223372036854775807, wantOK: true},
		{raw: "9223372036854775808"},
		{raw: "9.223372036854775808e18"},
		{raw: "1e19"},
		{raw: "-1e19"},
		{raw: "abc"},
	}

	for _, tc := range tests {
		got, ok := integer(json.Number(tc.raw))
		if ok != tc.wantOK || got != tc.want {
			t.Fatalf("integer(%s) = %d, %t; want %d, %t", tc.raw, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestIntegersDropsDuplicatesAndInvalid(t *testing.T) {
	t.Parallel()

	got := integers([]json.Number{"3", "3.0", "x", "1e20", "8"})
	if !reflect.DeepEqual(got, []int64{3, 8}) {
		t.Fatalf("unexpected ids: %v", got)
	}
}
