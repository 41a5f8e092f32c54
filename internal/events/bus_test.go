package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusNotifiesSubscribersInOrder(t *testing.T) {
	b := NewBus()

	var got []string
	b.Subscribe(DownloadStart, func(payload any) {
		got = append(got, "first:"+payload.(string))
	})
	b.Subscribe(DownloadStart, func(payload any) {
		got = append(got, "second:"+payload.(string))
	})
	b.Subscribe(DownloadFailed, func(payload any) {
		got = append(got, "wrong kind")
	})

	b.Notify(DownloadStart, "assets")

	assert.Equal(t, []string{"first:assets", "second:assets"}, got)
}

func TestBusSubscribeAll(t *testing.T) {
	b := NewBus()

	var kinds []Kind
	b.SubscribeAll(func(kind Kind, payload any) {
		kinds = append(kinds, kind)
	})

	b.Notify(UpdateStart, nil)
	b.Notify(ValidateSucceeded, "u")
	b.Notify(UpdateFinish, nil)

	assert.Equal(t, []Kind{UpdateStart, ValidateSucceeded, UpdateFinish}, kinds)
}

func TestBusNoSubscribers(t *testing.T) {
	b := NewBus()
	assert.NotPanics(t, func() { b.Notify(ExtractFailed, Failure{Unit: "u", Err: "x"}) })
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{UpdateStart, "update_start"},
		{BinaryUpdateStart, "binary_update_start"},
		{BinaryUpdateFinish, "binary_update_finish"},
		{PatchUpdateStart, "patch_update_start"},
		{PatchUpdateFinish, "patch_update_finish"},
		{ExtractStart, "extract_start"},
		{ExtractUpdate, "extract_update"},
		{ExtractSucceeded, "extract_succeeded"},
		{ExtractFailed, "extract_failed"},
		{ValidateStart, "validate_start"},
		{ValidateUpdate, "validate_update"},
		{ValidateSucceeded, "validate_succeeded"},
		{ValidateFailed, "validate_failed"},
		{DownloadStart, "download_start"},
		{DownloadUpdate, "download_update"},
		{DownloadSucceeded, "download_succeeded"},
		{DownloadFailed, "download_failed"},
		{UpdateFinish, "update_finish"},
		{Kind(99), "unknown"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.kind.String())
	}
}
