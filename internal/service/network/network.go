package network

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/jackpal/gateway"
	"github.com/jgivc/quickdrop/internal/common"
	"github.com/jgivc/quickdrop/internal/entity"
	"github.com/skip2/go-qrcode"
)

const (
	serviceName = "network"
	qrSize      = 256
)

// Interface is the part of net.Interface the discovery needs.
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []net.Addr
}

type InterfaceLister interface {
	Interfaces() ([]Interface, error)
}

type systemLister struct{}

func (systemLister) Interfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("cannot list interfaces: %w", err)
	}

	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		out = append(out, Interface{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
			Addrs:    addrs,
		})
	}

	return out, nil
}

type networkService struct {
	lister  InterfaceLister
	gateway func() (net.IP, error)
	port    int
	log     *slog.Logger
}

func NewNetworkService(port int, log *slog.Logger) *networkService {
	return NewNetworkServiceWithLister(systemLister{}, gateway.DiscoverGateway, port, log)
}

func NewNetworkServiceWithLister(lister InterfaceLister, gw func() (net.IP, error), port int, log *slog.Logger) *networkService {
	return &networkService{
		lister:  lister,
		gateway: gw,
		port:    port,
		log:     log.With(slog.String("service", serviceName)),
	}
}

/*
Info lists the IPv4 addresses of interfaces that are up, loopback excluded.
The address in the subnet of the default gateway is marked primary and goes first.
It is computed on every call, interfaces come and go.
*/
func (n *networkService) Info(ctx context.Context) *entity.ServerInfo {
	info := &entity.ServerInfo{
		Addresses: make([]entity.Address, 0),
		Port:      n.port,
	}

	ifaces, err := n.lister.Interfaces()
	if err != nil {
		n.log.Error("Cannot list interfaces", slog.Any("error", err))

		return info
	}

	gwIP, err := n.gateway()
	if err != nil {
		n.log.Debug("Cannot discover gateway", slog.Any("error", err))
	}

	primary := -1
	for _, iface := range ifaces {
		if !iface.Up || iface.Loopback {
			continue
		}

		for _, addr := range iface.Addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}

			ipv4 := ipnet.IP.To4()
			if ipv4 == nil || ipv4.IsLoopback() {
				continue
			}

			a := entity.Address{Name: iface.Name, Address: ipv4.String()}
			if primary < 0 && gwIP != nil && ipnet.Contains(gwIP) {
				a.Primary = true
				primary = len(info.Addresses)
			}

			info.Addresses = append(info.Addresses, a)
		}
	}

	if primary > 0 {
		p := info.Addresses[primary]
		copy(info.Addresses[1:primary+1], info.Addresses[:primary])
		info.Addresses[0] = p
	}

	return info
}

func (n *networkService) URL(address string) string {
	return "http://" + net.JoinHostPort(address, strconv.Itoa(n.port)) + "/"
}

// URLs returns the LAN URLs of the server, primary first.
func (n *networkService) URLs(ctx context.Context) []string {
	info := n.Info(ctx)

	urls := make([]string, 0, len(info.Addresses))
	for _, a := range info.Addresses {
		urls = append(urls, n.URL(a.Address))
	}

	return urls
}

// QR encodes the URL of address as a PNG. An empty address selects the first discovered one.
func (n *networkService) QR(ctx context.Context, address string) ([]byte, error) {
	info := n.Info(ctx)

	var found string
	for _, a := range info.Addresses {
		if address == "" || a.Address == address {
			found = a.Address

			break
		}
	}

	if found == "" {
		return nil, common.ErrAddressNotFoundError
	}

	png, err := qrcode.Encode(n.URL(found), qrcode.Medium, qrSize)
	if err != nil {
		n.log.Error("Cannot encode qr code", slog.String("address", found), slog.Any("error", err))

		return nil, fmt.Errorf("cannot encode qr code: %w", err)
	}

	return png, nil
}
