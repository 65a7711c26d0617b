package botmaster

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// weaponNames maps weapon ids to their display names.
var weaponNames = map[int]string{
	0:  "Fist",
	1:  "Brass Knuckles",
	2:  "Golf Club",
	3:  "Nightstick",
	4:  "Knife",
	5:  "Baseball Bat",
	6:  "Shovel",
	7:  "Pool Cue",
	8:  "Katana",
	9:  "Chainsaw",
	10: "Purple Dildo",
	11: "Dildo",
	12: "Vibrator",
	13: "Silver Vibrator",
	14: "Flowers",
	15: "Cane",
	16: "Grenade",
	17: "Tear Gas",
	18: "Molotov Cocktail",
	22: "9mm",
	23: "Silenced 9mm",
	24: "Desert Eagle",
	25: "Shotgun",
	26: "Sawnoff Shotgun",
	27: "Combat Shotgun",
	28: "Micro SMG",
	29: "MP5",
	30: "AK-47",
	31: "M4",
	32: "Tec-9",
	33: "Country Rifle",
	34: "Sniper Rifle",
	35: "RPG",
	36: "HS Rocket",
	37: "Flamethrower",
	38: "Minigun",
	39: "Satchel Charge",
	40: "Detonator",
	41: "Spraycan",
	42: "Fire Extinguisher",
	43: "Camera",
	44: "Night Vision Goggles",
	45: "Thermal Goggles",
	46: "Parachute",
	49: "Vehicle Collision",
	50: "Helicopter Blades",
	51: "Explosion",
	53: "Drowning",
	54: "Collision",
}

// WeaponName returns the display name for a weapon id.
func WeaponName(id int) string {
	if name, ok := weaponNames[id]; ok {
		return name
	}
	return "Weapon " + strconv.Itoa(id)
}

// zoneBox is one named axis-aligned world region.
type zoneBox struct {
	name             string
	minX, minY, minZ float64
	maxX, maxY, maxZ float64
}

// Names resolves model ids and world positions to human-readable names
// for LLM-facing output. Both tables are loaded from plain data files and
// degrade gracefully when the files are absent.
type Names struct {
	objects map[int]string
	zones   []zoneBox
}

// NewNames returns empty lookup tables.
func NewNames() *Names {
	return &Names{objects: make(map[int]string)}
}

// LoadObjects reads "id name" lines from path.
func (n *Names) LoadObjects(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, name, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		model, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		n.objects[model] = strings.TrimSpace(name)
	}
	return sc.Err()
}

// LoadZones reads "minX minY minZ maxX maxY maxZ name" lines from path.
func (n *Names) LoadZones(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, " ", 7)
		if len(fields) != 7 {
			continue
		}
		var z zoneBox
		var bad bool
		for i, dst := range []*float64{&z.minX, &z.minY, &z.minZ, &z.maxX, &z.maxY, &z.maxZ} {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				bad = true
				break
			}
			*dst = v
		}
		if bad {
			continue
		}
		z.name = strings.TrimSpace(fields[6])
		n.zones = append(n.zones, z)
	}
	return sc.Err()
}

// ObjectName returns the display name for a model id.
func (n *Names) ObjectName(model int) string {
	if name, ok := n.objects[model]; ok {
		return name
	}
	return fmt.Sprintf("object_%d", model)
}

// ZoneName returns the name of the smallest zone containing pos, or the
// world name when no zone matches.
func (n *Names) ZoneName(pos Vec3) string {
	best := ""
	bestVol := 0.0
	for i := range n.zones {
		z := &n.zones[i]
		if pos.X < z.minX || pos.X > z.maxX || pos.Y < z.minY || pos.Y > z.maxY || pos.Z < z.minZ || pos.Z > z.maxZ {
			continue
		}
		vol := (z.maxX - z.minX) * (z.maxY - z.minY) * (z.maxZ - z.minZ)
		if best == "" || vol < bestVol {
			best = z.name
			bestVol = vol
		}
	}
	if best == "" {
		return "San Andreas"
	}
	return best
}
