package service

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/timmy/shotlens/internal/domain"
)

var (
	placeNamespace   = uuid.NewSHA1(uuid.NameSpaceURL, []byte("shotlens:place"))
	clusterNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("shotlens:cluster"))
)

// PlaceID derives a stable id for the index-th extracted place of a screenshot.
// Re-running place extraction on the same screenshot yields the same ids, and
// two places sharing a name stay distinct.
func PlaceID(screenshotID string, index int, name string) string {
	key := screenshotID + "\x00" + strconv.Itoa(index) + "\x00" + normalizePlaceName(name)
	return uuid.NewSHA1(placeNamespace, []byte(key)).String()
}

// ClusterID derives a stable id from a cluster's member place ids.
func ClusterID(members []*domain.Place) string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	sort.Strings(ids)
	return uuid.NewSHA1(clusterNamespace, []byte(strings.Join(ids, ","))).String()
}

func normalizePlaceName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func calculateMD5(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}
