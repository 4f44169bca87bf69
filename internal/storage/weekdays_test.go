package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeWeekdaysEncodingsAgree(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		list   string
		legacy string
		want   []string
	}{
		{
			name:   "weekdays",
			list:   `["Seg","Ter"]`,
			legacy: `{"segunda":true,"terca":true,"quarta":false}`,
			want:   []string{"Seg", "Ter"},
		},
		{
			name:   "accented keys",
			list:   `["Sáb","Ter"]`,
			legacy: `{"sábado":true,"terça":true}`,
			want:   []string{"Ter", "Sáb"},
		},
		{
			name:   "full names with feira",
			list:   `["Qui","Sex","Dom"]`,
			legacy: `{"domingo":true,"quinta-feira":true,"sexta-feira":true}`,
			want:   []string{"Qui", "Sex", "Dom"},
		},
		{
			name:   "none enabled",
			list:   `[]`,
			legacy: `{"segunda":false}`,
			want:   []string{},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fromList := NormalizeWeekdays([]byte(tc.list))
			fromLegacy := NormalizeWeekdays([]byte(tc.legacy))
			require.Equal(t, tc.want, fromList.Strings())
			require.Equal(t, fromList, fromLegacy)
		})
	}
}

func TestNormalizeWeekdaysTolerance(t *testing.T) {
	t.Parallel()

	require.Empty(t, NormalizeWeekdays([]byte(`not json`)))
	require.Empty(t, NormalizeWeekdays([]byte(`42`)))
	require.Empty(t, NormalizeWeekdays([]byte(``)))
	require.Empty(t, NormalizeWeekdays([]byte(`null`)))
	require.Equal(t, []string{"Seg"}, NormalizeWeekdays([]byte(`{"segunda":true,"terca":"true","feriado":true}`)).Strings())
	require.Equal(t, []string{"Seg", "Sáb"}, NormalizeWeekdays([]byte(`["SAB","seg","Seg",7,"xyz"]`)).Strings())
}

func TestDecodeWeekdaysReportsLegacy(t *testing.T) {
	t.Parallel()

	_, legacy, err := decodeWeekdays([]byte(`{"segunda":true}`))
	require.NoError(t, err)
	require.True(t, legacy)

	_, legacy, err = decodeWeekdays([]byte(`["Seg"]`))
	require.NoError(t, err)
	require.False(t, legacy)

	_, _, err = decodeWeekdays([]byte(`"Seg"`))
	require.Error(t, err)
}

func TestParseWeekdayListIsStrict(t *testing.T) {
	t.Parallel()

	set, err := ParseWeekdayList([]string{"dom", "Segunda", "qua"})
	require.NoError(t, err)
	require.Equal(t, []string{"Seg", "Qua", "Dom"}, set.Strings())

	_, err = ParseWeekdayList([]string{"seg", "funday"})
	require.Error(t, err)
}

func TestWeekdayTimeConversion(t *testing.T) {
	t.Parallel()

	require.Equal(t, time.Sunday, Sunday.TimeWeekday())
	require.Equal(t, time.Monday, Monday.TimeWeekday())
	require.Equal(t, Saturday, WeekdayOf(time.Saturday))
	require.Equal(t, Sunday, WeekdayOf(time.Sunday))
	require.True(t, NewWeekdaySet(Monday, Friday).Contains(Friday))
	require.Equal(t, `["Seg","Sex"]`, encodeWeekdays(WeekdaySet{Friday, Monday}))
	require.Equal(t, `[]`, encodeWeekdays(nil))
}

func TestWeekdaySetJSONRoundTrip(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(NewWeekdaySet(Sunday, Tuesday))
	require.NoError(t, err)
	require.Equal(t, `["Ter","Dom"]`, string(raw))

	var set WeekdaySet
	require.NoError(t, json.Unmarshal([]byte(`["sábado","seg"]`), &set))
	require.Equal(t, []string{"Seg", "Sáb"}, set.Strings())

	require.Error(t, json.Unmarshal([]byte(`{"segunda":true}`), &set))
	require.Error(t, json.Unmarshal([]byte(`["funday"]`), &set))
}
