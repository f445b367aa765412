package builtins

import (
	"math/big"
	"net"
	"strconv"
	"strings"

	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/expr"
)

func init() {
	registerNet()
}

func registerNet() {
	expr.Register(expr.FunctionMetadata{
		Name:     "parseCidr",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgString},
		Fn:       parseCidrFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "cidrSubnet",
		MinArgs:  3,
		MaxArgs:  3,
		ArgKinds: []expr.ArgKind{expr.ArgString, expr.ArgNumber, expr.ArgNumber},
		Fn:       cidrSubnetFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "cidrHost",
		MinArgs:  2,
		MaxArgs:  2,
		ArgKinds: []expr.ArgKind{expr.ArgString, expr.ArgNumber},
		Fn:       cidrHostFn,
	})
}

func parseNetwork(fn, s string) (*net.IPNet, bool, error) {
	if !strings.Contains(s, "/") {
		return nil, false, dscerr.Function("not a valid CIDR block", nil).WithFunction(fn).WithDetail("cidr", s)
	}
	_, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		return nil, false, dscerr.Function("not a valid CIDR block", err).WithFunction(fn).WithDetail("cidr", s)
	}
	isV4 := ipnet.IP.To4() != nil
	return ipnet, isV4, nil
}

func parseCidrFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	s, _ := args[0].AsString()
	ipnet, isV4, err := parseNetwork("parseCidr", s)
	if err != nil {
		return expr.Value{}, err
	}
	prefixLen, totalBits := ipnet.Mask.Size()

	network := ipnet.IP
	broadcast := lastAddress(ipnet)

	b := expr.NewObject()
	b.Set("network", expr.String(network.String()))
	b.Set("netmask", expr.String(net.IP(ipnet.Mask).String()))
	b.Set("broadcast", expr.String(broadcast.String()))
	b.Set("cidr", expr.Int(int64(prefixLen)))

	if isV4 {
		if prefixLen == totalBits {
			b.Set("firstUsable", expr.String(network.String()))
			b.Set("lastUsable", expr.String(broadcast.String()))
		} else {
			b.Set("firstUsable", expr.String(offsetAddress(network, big.NewInt(1)).String()))
			b.Set("lastUsable", expr.String(offsetAddress(broadcast, big.NewInt(-1)).String()))
		}
	} else {
		b.Set("firstUsable", expr.String(network.String()))
		b.Set("lastUsable", expr.String(broadcast.String()))
	}
	return b.Build(), nil
}

func cidrSubnetFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	s, _ := args[0].AsString()
	newPrefix, _ := args[1].AsInt()
	index, _ := args[2].AsInt()

	if index < 0 {
		return expr.Value{}, dscerr.Function("subnet index must not be negative", nil).WithFunction("cidrSubnet")
	}

	ipnet, isV4, err := parseNetwork("cidrSubnet", s)
	if err != nil {
		return expr.Value{}, err
	}
	oldPrefix, totalBits := ipnet.Mask.Size()

	maxPrefix := 32
	if !isV4 {
		maxPrefix = 128
	}
	if int(newPrefix) > maxPrefix || newPrefix < 0 {
		return expr.Value{}, dscerr.Function("new prefix is out of range for the address family", nil).
			WithFunction("cidrSubnet").WithDetail("prefix", newPrefix)
	}
	if int(newPrefix) < oldPrefix {
		return expr.Value{}, dscerr.Function("new prefix must not be smaller than the existing prefix", nil).
			WithFunction("cidrSubnet").WithDetail("newPrefix", newPrefix).WithDetail("currentPrefix", oldPrefix)
	}

	subnetBits := int(newPrefix) - oldPrefix
	if !isV4 && subnetBits > 32 {
		return expr.Value{}, dscerr.Function("too many subnets requested", nil).WithFunction("cidrSubnet")
	}

	numSubnets := new(big.Int).Lsh(big.NewInt(1), uint(subnetBits))
	if new(big.Int).SetInt64(index).Cmp(numSubnets) >= 0 {
		return expr.Value{}, dscerr.Function("subnet index out of range", nil).
			WithFunction("cidrSubnet").WithDetail("index", index)
	}

	hostBits := totalBits - int(newPrefix)
	subnetSize := new(big.Int).Lsh(big.NewInt(1), uint(hostBits))
	offset := new(big.Int).Mul(big.NewInt(index), subnetSize)

	subnetAddr := offsetAddress(ipnet.IP, offset)
	return expr.String(subnetAddr.String() + "/" + strconv.Itoa(int(newPrefix))), nil
}

func cidrHostFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	s, _ := args[0].AsString()
	hostIndex, _ := args[1].AsInt()

	if hostIndex < 0 {
		return expr.Value{}, dscerr.Function("host index must not be negative", nil).WithFunction("cidrHost")
	}

	ipnet, isV4, err := parseNetwork("cidrHost", s)
	if err != nil {
		return expr.Value{}, err
	}
	prefix, totalBits := ipnet.Mask.Size()

	if prefix == totalBits {
		return expr.Value{}, dscerr.Function("a host-only prefix has no usable hosts", nil).WithFunction("cidrHost")
	}
	if prefix == totalBits-1 {
		if hostIndex > 1 {
			return expr.Value{}, dscerr.Function("host index out of range", nil).
				WithFunction("cidrHost").WithDetail("index", hostIndex).WithDetail("maxIndex", 1)
		}
		return expr.String(offsetAddress(ipnet.IP, big.NewInt(hostIndex)).String()), nil
	}

	hostBits := totalBits - prefix
	size := new(big.Int).Lsh(big.NewInt(1), uint(hostBits))
	var maxUsableIndex *big.Int
	if isV4 {
		maxUsableIndex = new(big.Int).Sub(size, big.NewInt(2))
	} else {
		maxUsableIndex = new(big.Int).Sub(size, big.NewInt(1))
	}
	if new(big.Int).SetInt64(hostIndex).Cmp(maxUsableIndex) >= 0 {
		return expr.Value{}, dscerr.Function("host index out of range", nil).
			WithFunction("cidrHost").WithDetail("index", hostIndex)
	}

	return expr.String(offsetAddress(ipnet.IP, big.NewInt(hostIndex+1)).String()), nil
}

// lastAddress returns the broadcast (v4) or highest (v6) address in ipnet.
func lastAddress(ipnet *net.IPNet) net.IP {
	ip := ipnet.IP
	mask := ipnet.Mask
	out := make(net.IP, len(ip))
	for i := range ip {
		out[i] = ip[i] | ^mask[i]
	}
	return out
}

// offsetAddress returns ip shifted by delta (which may be negative),
// using arbitrary-precision arithmetic so IPv6 addresses never overflow a
// machine word.
func offsetAddress(ip net.IP, delta *big.Int) net.IP {
	n := new(big.Int).SetBytes(ip)
	n.Add(n, delta)
	buf := n.Bytes()
	out := make(net.IP, len(ip))
	copy(out[len(out)-len(buf):], buf)
	return out
}

