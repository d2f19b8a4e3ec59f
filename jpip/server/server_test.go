package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-jp3d"
	"github.com/cocosip/go-jp3d/jpip/cache"
	"github.com/cocosip/go-jp3d/jpip/delivery"
)

func testVolumeSource(name string, w, h, d int) *VolumeSource {
	return &VolumeSource{
		Name: name, Width: w, Height: h, Depth: d,
		MaxResolutionLevel: 2, Components: 1,
		EncodePrecinct: func(jp3d.Precinct3D) []byte { return make([]byte, 64) },
	}
}

func TestRegisterAndCreateSession(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", CacheParams: cache.Params{MaxEntries: 100}})
	s.RegisterVolume(testVolumeSource("ct-scan", 64, 64, 32))

	sess, err := s.CreateSession("ct-scan", jp3d.NewRegion(0, 0, 0, 64, 64, 32), delivery.ModeLRCPS, 8000)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.Equal(t, 1, s.ActiveSessions())
}

func TestCreateSessionUnknownVolume(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"})
	_, err := s.CreateSession("missing", jp3d.Region{}, delivery.ModeLRCPS, 8000)
	require.Error(t, err)
	var jerr *jp3d.Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, jp3d.KindUnknownVolume, jerr.Kind)
}

func TestCreateSessionSessionLimitExceeded(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", MaxSessions: 1})
	s.RegisterVolume(testVolumeSource("vol", 16, 16, 16))
	full := jp3d.NewRegion(0, 0, 0, 16, 16, 16)

	_, err := s.CreateSession("vol", full, delivery.ModeLRCPS, 8000)
	require.NoError(t, err)
	_, err = s.CreateSession("vol", full, delivery.ModeLRCPS, 8000)
	require.Error(t, err)
	var jerr *jp3d.Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, jp3d.KindSessionLimitExceeded, jerr.Kind)
}

func TestCreateSessionEmptyFrustum(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"})
	s.RegisterVolume(testVolumeSource("vol", 16, 16, 16))

	outside := jp3d.NewRegion(1000, 1000, 1000, 4, 4, 4)
	_, err := s.CreateSession("vol", outside, delivery.ModeLRCPS, 8000)
	require.Error(t, err)
	var jerr *jp3d.Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, jp3d.KindEmptyFrustum, jerr.Kind)
}

func TestHandleRequestClipsToFrustumAndSchedules(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", CacheParams: cache.Params{MaxEntries: 100}})
	s.RegisterVolume(testVolumeSource("vol", 32, 32, 16))

	sess, err := s.CreateSession("vol", jp3d.NewRegion(0, 0, 0, 16, 16, 16), delivery.ModeLRCPS, 8000)
	require.NoError(t, err)

	sched, err := s.HandleRequest(sess.ID, jp3d.NewRegion(0, 0, 0, 32, 32, 16))
	require.NoError(t, err)
	require.NotEmpty(t, sched.Bins)
}

func TestHandleRequestVolumeTooLarge(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", MaxFullVolumeBytes: 10, CacheParams: cache.Params{MaxEntries: 100}})
	s.RegisterVolume(testVolumeSource("vol", 32, 32, 32))

	full := jp3d.NewRegion(0, 0, 0, 32, 32, 32)
	sess, err := s.CreateSession("vol", full, delivery.ModeLRCPS, 8000)
	require.NoError(t, err)

	_, err = s.HandleRequest(sess.ID, full)
	require.Error(t, err)
	var jerr *jp3d.Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, jp3d.KindVolumeTooLarge, jerr.Kind)
}

func TestHandleRequestUnknownSession(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"})
	_, err := s.HandleRequest("does-not-exist", jp3d.Region{})
	require.Error(t, err)
	var jerr *jp3d.Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, jp3d.KindNoSession, jerr.Kind)
}

func TestStartStopLifecycle(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, s.Start(context.Background()))

	err := s.Start(context.Background())
	require.Error(t, err)
	var jerr *jp3d.Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, jp3d.KindAlreadyRunning, jerr.Kind)

	require.NoError(t, s.Stop(context.Background()))

	err = s.Stop(context.Background())
	require.Error(t, err)
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, jp3d.KindNotRunning, jerr.Kind)
}
