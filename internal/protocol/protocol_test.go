package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/yahtzee-backend/internal/scoring"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		msg  Message
		want string
	}{
		{Start{}, "start"},
		{Quit{}, "quit"},
		{RoundStart{}, "ROUND_START"},
		{Welcome{PlayerID: 3}, "WELCOME_3"},
		{Submit{Part: scoring.PartUpper, Category: 2, Value: 9}, "SUBMIT_0_2_9"},
		{Submit{Part: scoring.PartNone}, "SUBMIT_-1_0_0"},
		{Update{PlayerID: 1, Part: scoring.PartLower, Category: 6, Value: 50}, "UPDATE_1_1_6_50"},
		{Retry{PlayerID: 2}, "RETRY_2"},
		{ScoreRequest{PlayerID: 2}, "SCORE_2"},
		{ScoreResponse{PlayerID: 2, Score: 77}, "SCORE_2_77"},
		{Over{WinnerID: 4}, "OVER_4"},
	}

	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, Encode(tc.msg))
		})
	}
}

func TestDecode(t *testing.T) {
	cases := []struct {
		line string
		want Message
	}{
		{"start", Start{}},
		{"quit\r", Quit{}},
		{"  ROUND_START ", RoundStart{}},
		{"WELCOME_7", Welcome{PlayerID: 7}},
		{"SUBMIT_0_2_9", Submit{Part: scoring.PartUpper, Category: 2, Value: 9}},
		{"SUBMIT_1_0_0", Submit{Part: scoring.PartLower, Category: 0, Value: 0}},
		// forfeit ignores the category and value
		{"SUBMIT_-1_5_12", Submit{Part: scoring.PartNone}},
		{"UPDATE_3_1_4_40", Update{PlayerID: 3, Part: scoring.PartLower, Category: 4, Value: 40}},
		{"UPDATE_3_-1_0_0", Update{PlayerID: 3, Part: scoring.PartNone}},
		{"RETRY_2", Retry{PlayerID: 2}},
		{"SCORE_2", ScoreRequest{PlayerID: 2}},
		{"SCORE_2_31", ScoreResponse{PlayerID: 2, Score: 31}},
		{"OVER_0", Over{WinnerID: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			got, err := Decode(tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := []struct {
		name string
		line string
		want error
	}{
		{"empty", "", ErrMalformed},
		{"whitespace", "   ", ErrMalformed},
		{"unknown verb", "ROLL_1", ErrMalformed},
		{"missing fields", "SUBMIT_0_2", ErrMalformed},
		{"extra fields", "SUBMIT_0_2_9_1", ErrMalformed},
		{"not a number", "SUBMIT_0_two_9", ErrMalformed},
		{"bare verb", "SUBMIT", ErrMalformed},
		{"trailing separator", "OVER_", ErrMalformed},
		{"score arity", "SCORE_1_2_3", ErrMalformed},
		{"bad part", "SUBMIT_2_0_1", ErrOutOfRange},
		{"upper index too high", "SUBMIT_0_6_1", ErrOutOfRange},
		{"lower index too high", "SUBMIT_1_7_1", ErrOutOfRange},
		{"negative index", "SUBMIT_0_-1_1", ErrOutOfRange},
		{"negative value", "SUBMIT_1_5_-3", ErrOutOfRange},
		{"value above any category", "SUBMIT_1_5_51", ErrOutOfRange},
		{"huge value", "SUBMIT_0_0_9223372036854775807", ErrOutOfRange},
		{"negative player", "RETRY_-4", ErrOutOfRange},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.line)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSubmitForfeit(t *testing.T) {
	assert.True(t, Submit{Part: scoring.PartNone}.Forfeit())
	assert.False(t, Submit{Part: scoring.PartUpper}.Forfeit())
}
