package network

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/jgivc/quickdrop/internal/common"
	"github.com/jgivc/quickdrop/internal/entity"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	ifaces []Interface
	err    error
}

func (f *fakeLister) Interfaces() ([]Interface, error) {
	return f.ifaces, f.err
}

func ipNet(t *testing.T, cidr string) *net.IPNet {
	t.Helper()

	ip, n, err := net.ParseCIDR(cidr)
	require.NoError(t, err)
	n.IP = ip

	return n
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func testInterfaces(t *testing.T) []Interface {
	return []Interface{
		{Name: "lo", Up: true, Loopback: true, Addrs: []net.Addr{ipNet(t, "127.0.0.1/8")}},
		{Name: "docker0", Up: true, Addrs: []net.Addr{ipNet(t, "172.17.0.1/16")}},
		{Name: "eth0", Up: true, Addrs: []net.Addr{ipNet(t, "fe80::1/64"), ipNet(t, "192.168.1.20/24")}},
		{Name: "wlan0", Up: false, Addrs: []net.Addr{ipNet(t, "10.0.0.5/24")}},
	}
}

func TestInfo(t *testing.T) {
	testCases := []struct {
		name    string
		gateway func() (net.IP, error)
		want    []entity.Address
	}{
		{
			name:    "gateway found",
			gateway: func() (net.IP, error) { return net.ParseIP("192.168.1.1"), nil },
			want: []entity.Address{
				{Name: "eth0", Address: "192.168.1.20", Primary: true},
				{Name: "docker0", Address: "172.17.0.1"},
			},
		},
		{
			name:    "no gateway",
			gateway: func() (net.IP, error) { return nil, errors.New("no route") },
			want: []entity.Address{
				{Name: "docker0", Address: "172.17.0.1"},
				{Name: "eth0", Address: "192.168.1.20"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewNetworkServiceWithLister(&fakeLister{ifaces: testInterfaces(t)}, tc.gateway, 3001, newLogger())

			info := srv.Info(context.Background())
			require.Equal(t, 3001, info.Port)
			require.Equal(t, tc.want, info.Addresses)
		})
	}
}

func TestInfo_ListerFails(t *testing.T) {
	gw := func() (net.IP, error) { return nil, errors.New("no route") }
	srv := NewNetworkServiceWithLister(&fakeLister{err: errors.New("boom")}, gw, 3001, newLogger())

	info := srv.Info(context.Background())
	require.NotNil(t, info.Addresses)
	require.Empty(t, info.Addresses)
}

func TestURLs(t *testing.T) {
	gw := func() (net.IP, error) { return net.ParseIP("192.168.1.1"), nil }
	srv := NewNetworkServiceWithLister(&fakeLister{ifaces: testInterfaces(t)}, gw, 8080, newLogger())

	require.Equal(t, []string{"http://192.168.1.20:8080/", "http://172.17.0.1:8080/"}, srv.URLs(context.Background()))
}

func TestQR(t *testing.T) {
	gw := func() (net.IP, error) { return net.ParseIP("192.168.1.1"), nil }
	srv := NewNetworkServiceWithLister(&fakeLister{ifaces: testInterfaces(t)}, gw, 3001, newLogger())
	ctx := context.Background()

	for _, address := range []string{"", "172.17.0.1"} {
		data, err := srv.QR(ctx, address)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		require.Equal(t, qrSize, img.Bounds().Dx())
	}

	_, err := srv.QR(ctx, "10.0.0.5")
	require.ErrorIs(t, err, common.ErrAddressNotFoundError)
}
