package pipeline

import (
	"sort"
	"strconv"
	"strings"

	"usage-analytics/internal/model"
)

// TopNodeTypes is how many node types keep their own category.
const TopNodeTypes = 5

// NodeTypePrefix starts every node category key.
const NodeTypePrefix = "node_type_"

// OtherNodeKey is the category collecting every type outside the top ranks.
const OtherNodeKey = NodeTypePrefix + "other"

var nodeTypeNames = map[int64]string{
	3:  "message",
	5:  "code",
	14: "conditional",
	16: "skill",
	18: "memory",
}

// NodeTypeKey names the category of a node type id.
func NodeTypeKey(id int64) string {
	if name, ok := nodeTypeNames[id]; ok {
		return NodeTypePrefix + name
	}
	return NodeTypePrefix + strconv.FormatInt(id, 10)
}

// NodeTypeLabel turns a category key into a display label.
func NodeTypeLabel(key string) string {
	name := strings.TrimPrefix(key, NodeTypePrefix)
	if name == "" {
		return key
	}
	if _, err := strconv.Atoi(name); err == nil {
		return "Type " + name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// NodeUsage is the per-company node creation summary.
type NodeUsage struct {
	Categories []model.NodeCategory
	// Flags maps company id to the categories it created nodes in.
	Flags  map[int64]map[string]bool
	Totals map[int64]int64
}

// BuildNodeUsage ranks node types by total creation volume, keeps the top
// ones and folds the rest into "other". Ties rank the lower type id first.
func BuildNodeUsage(nodesUsed *Table) NodeUsage {
	usage := NodeUsage{Flags: map[int64]map[string]bool{}, Totals: map[int64]int64{}}
	if nodesUsed.Len() == 0 {
		return usage
	}

	volumes := map[int64]int64{}
	for _, rec := range nodesUsed.Records {
		if _, ok := rec["nodeTypeId"]; !ok {
			continue
		}
		volumes[intOf(rec, "nodeTypeId")] += intOf(rec, "nodes_created")
	}
	types := make([]int64, 0, len(volumes))
	for id := range volumes {
		types = append(types, id)
	}
	sort.Slice(types, func(i, j int) bool {
		if volumes[types[i]] != volumes[types[j]] {
			return volumes[types[i]] > volumes[types[j]]
		}
		return types[i] < types[j]
	})

	keyOf := map[int64]string{}
	var other int64
	for rank, id := range types {
		if rank < TopNodeTypes {
			key := NodeTypeKey(id)
			keyOf[id] = key
			usage.Categories = append(usage.Categories, model.NodeCategory{
				Key:    key,
				Label:  NodeTypeLabel(key),
				TypeID: id,
				Volume: volumes[id],
				Rank:   rank,
			})
			continue
		}
		other += volumes[id]
	}
	usage.Categories = append(usage.Categories, model.NodeCategory{
		Key:     OtherNodeKey,
		Label:   "Other",
		Volume:  other,
		Rank:    len(usage.Categories),
		IsOther: true,
	})

	perCategory := map[int64]map[string]int64{}
	for _, rec := range nodesUsed.Records {
		cid, ok := idOf(rec)
		if !ok {
			continue
		}
		if _, ok := rec["nodeTypeId"]; !ok {
			continue
		}
		created := intOf(rec, "nodes_created")
		key, ok := keyOf[intOf(rec, "nodeTypeId")]
		if !ok {
			key = OtherNodeKey
		}
		if perCategory[cid] == nil {
			perCategory[cid] = map[string]int64{}
		}
		perCategory[cid][key] += created
		usage.Totals[cid] += created
	}
	for cid, counts := range perCategory {
		flags := map[string]bool{}
		for key, n := range counts {
			if n > 0 {
				flags[key] = true
			}
		}
		usage.Flags[cid] = flags
	}
	return usage
}

// categoriesFromColumns rebuilds categories from node_type_* columns of a
// precomputed table. Volume is the number of companies flagged.
func categoriesFromColumns(t *Table) []model.NodeCategory {
	var cats []model.NodeCategory
	for _, col := range t.Columns {
		if !strings.HasPrefix(col, NodeTypePrefix) {
			continue
		}
		var vol int64
		for _, rec := range t.Records {
			if boolOf(rec, col) {
				vol++
			}
		}
		cats = append(cats, model.NodeCategory{
			Key:     col,
			Label:   NodeTypeLabel(col),
			Volume:  vol,
			IsOther: col == OtherNodeKey,
		})
	}
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].IsOther != cats[j].IsOther {
			return !cats[i].IsOther
		}
		if cats[i].Volume != cats[j].Volume {
			return cats[i].Volume > cats[j].Volume
		}
		return cats[i].Key < cats[j].Key
	})
	for i := range cats {
		cats[i].Rank = i
	}
	return cats
}
