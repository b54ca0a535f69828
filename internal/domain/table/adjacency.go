package table

// AdjacencyMode は複数テーブルプランに要求する隣接条件を表す
type AdjacencyMode string

const (
	// AdjacencyModePairwise は選択したテーブル同士が全て直接隣接していることを要求する
	AdjacencyModePairwise AdjacencyMode = "pairwise"
	// AdjacencyModeNeighbors はいずれか1テーブルが他の全テーブルと隣接していることを要求する
	AdjacencyModeNeighbors AdjacencyMode = "neighbors"
	// AdjacencyModeConnected は選択全体がグラフ上で連結であることを要求する（最も緩い、デフォルト）
	AdjacencyModeConnected AdjacencyMode = "connected"
)

// Graph はテーブル間の物理的な隣接関係を表す無向グラフ
type Graph struct {
	neighbors map[string]map[string]struct{}
}

// NewGraph は隣接エッジの組から対称なグラフを構築する
func NewGraph(edges [][2]string) *Graph {
	g := &Graph{neighbors: make(map[string]map[string]struct{})}
	for _, e := range edges {
		g.AddEdge(e[0], e[1])
	}
	return g
}

// AddEdge は双方向の隣接エッジを追加する
func (g *Graph) AddEdge(a, b string) {
	if a == b {
		return
	}
	if g.neighbors[a] == nil {
		g.neighbors[a] = make(map[string]struct{})
	}
	if g.neighbors[b] == nil {
		g.neighbors[b] = make(map[string]struct{})
	}
	g.neighbors[a][b] = struct{}{}
	g.neighbors[b][a] = struct{}{}
}

// Adjacent は2テーブルが直接隣接しているかを返す
func (g *Graph) Adjacent(a, b string) bool {
	_, ok := g.neighbors[a][b]
	return ok
}

// Neighbors はテーブルの隣接テーブルID一覧を返す
func (g *Graph) Neighbors(id string) []string {
	set := g.neighbors[id]
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	return out
}

// Degree はテーブルの隣接数を返す
func (g *Graph) Degree(id string) int {
	return len(g.neighbors[id])
}

// AdjacencyResult は選択テーブル集合の隣接評価結果を表す
type AdjacencyResult struct {
	Connected  bool
	Pairwise   bool
	HubAligned bool
	// Depths は最初のテーブルを起点としたBFS深さ（到達不能なら -1）
	Depths map[string]int
	// Cost は到達テーブルの最大BFS深さ（非連結なら選択テーブル数）
	Cost int
}

// EvaluateAdjacency は選択テーブル集合の隣接関係を評価する
func (g *Graph) EvaluateAdjacency(selected []string) AdjacencyResult {
	result := AdjacencyResult{Depths: make(map[string]int)}
	if len(selected) == 0 {
		result.Connected = true
		result.Pairwise = true
		result.HubAligned = true
		return result
	}

	inSelection := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		inSelection[id] = struct{}{}
		result.Depths[id] = -1
	}

	// 最初のテーブルを起点に選択集合内だけを辿るBFS
	queue := []string{selected[0]}
	result.Depths[selected[0]] = 0
	reached := 1
	maxDepth := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for neighbor := range g.neighbors[current] {
			if _, ok := inSelection[neighbor]; !ok {
				continue
			}
			if result.Depths[neighbor] >= 0 {
				continue
			}
			result.Depths[neighbor] = result.Depths[current] + 1
			if result.Depths[neighbor] > maxDepth {
				maxDepth = result.Depths[neighbor]
			}
			reached++
			queue = append(queue, neighbor)
		}
	}

	result.Connected = reached == len(selected)
	if result.Connected {
		result.Cost = maxDepth
	} else {
		result.Cost = len(selected)
	}

	result.Pairwise = true
	for i := 0; i < len(selected) && result.Pairwise; i++ {
		for j := i + 1; j < len(selected); j++ {
			if !g.Adjacent(selected[i], selected[j]) {
				result.Pairwise = false
				break
			}
		}
	}

	result.HubAligned = false
	for _, hub := range selected {
		aligned := true
		for _, other := range selected {
			if other == hub {
				continue
			}
			if !g.Adjacent(hub, other) {
				aligned = false
				break
			}
		}
		if aligned {
			result.HubAligned = true
			break
		}
	}
	if len(selected) == 1 {
		result.HubAligned = true
	}

	return result
}

// Satisfies は指定モードの隣接条件を満たすかを返す
func (r AdjacencyResult) Satisfies(mode AdjacencyMode) bool {
	switch mode {
	case AdjacencyModePairwise:
		return r.Pairwise
	case AdjacencyModeNeighbors:
		return r.HubAligned
	default:
		return r.Connected
	}
}

// Classification はプランの隣接分類を返す
func (r AdjacencyResult) Classification(tableCount int) string {
	switch {
	case tableCount <= 1:
		return "single"
	case r.Pairwise:
		return "pairwise"
	case r.HubAligned:
		return "neighbors"
	case r.Connected:
		return "connected"
	default:
		return "disconnected"
	}
}
