package detector

import (
	"net/netip"
	"strconv"
	"strings"
)

// digitsOf strips spaces, hyphens, dots, and slashes, returning only
// the decimal digits of s.
func digitsOf(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// luhn reports whether the digits of s pass the Luhn mod-10 check and
// form a plausible card length (13–19 digits).
func luhn(s string) bool {
	d := digitsOf(s)
	if len(d) < 13 || len(d) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(d) - 1; i >= 0; i-- {
		n := int(d[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// ipv4Octets reports whether every dotted octet parses to 0–255
// without leading-zero padding beyond a single zero.
func ipv4Octets(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || (len(p) > 1 && p[0] == '0') {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

func ipv6Addr(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is6()
}

// auTFN checks the Australian Tax File Number weighted checksum.
func auTFN(s string) bool {
	d := digitsOf(s)
	if len(d) != 9 {
		return false
	}
	weights := []int{1, 4, 3, 7, 5, 8, 6, 9, 10}
	sum := 0
	for i, w := range weights {
		sum += w * int(d[i]-'0')
	}
	return sum%11 == 0
}

// auMedicare checks the Medicare card checksum over the first eight
// digits against the ninth.
func auMedicare(s string) bool {
	d := digitsOf(s)
	if len(d) < 9 || len(d) > 11 {
		return false
	}
	if d[0] < '2' || d[0] > '6' {
		return false
	}
	weights := []int{1, 3, 7, 9, 1, 3, 7, 9}
	sum := 0
	for i, w := range weights {
		sum += w * int(d[i]-'0')
	}
	return sum%10 == int(d[8]-'0')
}

// auABN checks the Australian Business Number mod-89 checksum.
func auABN(s string) bool {
	d := digitsOf(s)
	if len(d) != 11 {
		return false
	}
	weights := []int{10, 1, 3, 5, 7, 9, 11, 13, 15, 17, 19}
	sum := (int(d[0]-'0') - 1) * weights[0]
	for i := 1; i < 11; i++ {
		sum += weights[i] * int(d[i]-'0')
	}
	return sum%89 == 0
}

// nzIRD checks the Inland Revenue Department number: primary weights
// over the base digits, falling back to the secondary weight set when
// the primary result is 10.
func nzIRD(s string) bool {
	d := digitsOf(s)
	if len(d) < 8 || len(d) > 9 {
		return false
	}
	base := d[:len(d)-1]
	check := int(d[len(d)-1] - '0')
	for len(base) < 8 {
		base = "0" + base
	}
	calc := func(weights []int) int {
		sum := 0
		for i, w := range weights {
			sum += w * int(base[i]-'0')
		}
		rem := sum % 11
		if rem == 0 {
			return 0
		}
		return 11 - rem
	}
	c := calc([]int{3, 2, 7, 6, 5, 4, 3, 2})
	if c == 10 {
		c = calc([]int{7, 4, 3, 2, 5, 2, 7, 6})
		if c == 10 {
			return false
		}
	}
	return c == check
}

// ukNHS checks the NHS number modulus-11 check digit.
func ukNHS(s string) bool {
	d := digitsOf(s)
	if len(d) != 10 {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		sum += (10 - i) * int(d[i]-'0')
	}
	check := 11 - sum%11
	if check == 11 {
		check = 0
	}
	if check == 10 {
		return false
	}
	return check == int(d[9]-'0')
}

// nzNHI checks the legacy National Health Index format: three letters
// (I and O excluded), three digits, and a mod-11 check digit.
func nzNHI(s string) bool {
	up := strings.ToUpper(s)
	if len(up) != 7 {
		return false
	}
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	sum := 0
	for i := 0; i < 3; i++ {
		pos := strings.IndexByte(alphabet, up[i])
		if pos < 0 {
			return false
		}
		sum += (pos + 1) * (7 - i)
	}
	for i := 3; i < 6; i++ {
		if up[i] < '0' || up[i] > '9' {
			return false
		}
		sum += int(up[i]-'0') * (7 - i)
	}
	if up[6] < '0' || up[6] > '9' {
		return false
	}
	rem := sum % 11
	if rem == 0 {
		return false
	}
	check := 11 - rem
	if check == 10 {
		check = 0
	}
	return check == int(up[6]-'0')
}

// usSSN rejects the never-issued area/group/serial values.
func usSSN(s string) bool {
	d := digitsOf(s)
	if len(d) != 9 {
		return false
	}
	area := d[:3]
	group := d[3:5]
	serial := d[5:]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	if group == "00" || serial == "0000" {
		return false
	}
	return true
}

// ukNINO rejects the National Insurance prefixes that are never
// allocated.
func ukNINO(s string) bool {
	up := strings.ToUpper(strings.ReplaceAll(s, " ", ""))
	if len(up) != 9 {
		return false
	}
	if strings.ContainsRune("DFIQUV", rune(up[0])) {
		return false
	}
	if strings.ContainsRune("DFIQUVO", rune(up[1])) {
		return false
	}
	switch up[:2] {
	case "BG", "GB", "NK", "KN", "TN", "NT", "ZZ":
		return false
	}
	return true
}

// vinISO3779 validates the position-9 check digit of a vehicle
// identification number.
func vinISO3779(s string) bool {
	up := strings.ToUpper(s)
	if len(up) != 17 {
		return false
	}
	values := map[byte]int{
		'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8,
		'J': 1, 'K': 2, 'L': 3, 'M': 4, 'N': 5, 'P': 7, 'R': 9,
		'S': 2, 'T': 3, 'U': 4, 'V': 5, 'W': 6, 'X': 7, 'Y': 8, 'Z': 9,
	}
	weights := []int{8, 7, 6, 5, 4, 3, 2, 10, 0, 9, 8, 7, 6, 5, 4, 3, 2}
	sum := 0
	for i := 0; i < 17; i++ {
		c := up[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		default:
			var ok bool
			v, ok = values[c]
			if !ok {
				return false
			}
		}
		sum += v * weights[i]
	}
	rem := sum % 11
	check := up[8]
	if rem == 10 {
		return check == 'X'
	}
	return check == byte('0'+rem)
}
