package visualizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"os"
	"path/filepath"

	"github.com/storyloom/storyloom/pkg/story"
)

// The HTML template for the D3.js story tree
const d3Template = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <script src="https://d3js.org/d3.v7.min.js"></script>
    <style>
        body {
            margin: 0;
            font-family: Arial, sans-serif;
        }
        #story-container {
            display: flex;
            width: 100%;
            height: 100vh;
        }
        #tree-container {
            flex: 2;
            overflow: auto;
            border: 1px solid #ddd;
            border-radius: 5px;
            padding: 20px;
        }
        #detail-panel {
            flex: 1;
            padding: 15px;
            background-color: #f5f7f9;
            border-left: 1px solid #ddd;
            margin-left: 10px;
            border-radius: 5px;
            overflow: auto;
        }
        .node circle {
            fill: #69b3a2;
            stroke: #3a7759;
            stroke-width: 1.5px;
        }
        .node text {
            font: 12px sans-serif;
            fill: #333;
        }
        .node:hover circle {
            fill: #3a7759;
        }
        .link {
            fill: none;
            stroke: #ccc;
            stroke-width: 2px;
        }
        .selected-node circle {
            fill: #ff7f0e;
            stroke: #d26013;
            stroke-width: 2px;
        }
        .merge-node circle {
            fill: #9370DB;
            stroke: #4B0082;
            stroke-width: 2px;
        }
        .achievement-node circle {
            fill: #FFD700;
            stroke: #DAA520;
            stroke-width: 2px;
        }
        .merge-link {
            fill: none;
            stroke: #9370DB;
            stroke-width: 2px;
            stroke-dasharray: 5,5;
        }
        .achievement-badge {
            background-color: #FFF8DC;
            border: 2px solid #FFD700;
            border-radius: 8px;
            padding: 10px;
            margin-top: 15px;
        }
        .achievement-badge h4 {
            color: #DAA520;
            margin-top: 0;
            margin-bottom: 5px;
        }
    </style>
</head>
<body>
    <div id="story-container">
        <div id="tree-container"></div>
        <div id="detail-panel">
            <h3>Node Details</h3>
            <p>Click on a node to view its details. Nodes: {{.NodeCount}}</p>
            <div id="node-details"></div>
        </div>
    </div>

    <script>
        const data = {{.StoryData}};

        const margin = {top: 50, right: 30, bottom: 50, left: 50};
        const width = document.getElementById('tree-container').clientWidth - margin.left - margin.right;
        const height = window.innerHeight - margin.top - margin.bottom;

        const svg = d3.select("#tree-container").append("svg")
            .attr("width", width + margin.left + margin.right)
            .attr("height", height + margin.top + margin.bottom)
            .append("g")
            .attr("transform", "translate(" + (width/2) + "," + margin.top + ")")
            .call(d3.zoom().on("zoom", function(event) {
                svg.attr("transform", event.transform);
            }));

        svg.append("defs").selectAll("marker")
            .data(["arrow", "merge-arrow"])
            .enter().append("marker")
            .attr("id", function(d) { return d; })
            .attr("viewBox", "0 -5 10 10")
            .attr("refX", 10)
            .attr("refY", 0)
            .attr("markerWidth", 6)
            .attr("markerHeight", 6)
            .attr("orient", "auto")
            .append("path")
            .attr("d", "M0,-5L10,0L0,5")
            .attr("fill", function(d) { return d === "merge-arrow" ? "#9370DB" : "#999"; });

        const root = d3.hierarchy(data);
        const nodeCount = root.descendants().length;
        const ySpacing = Math.min(120, (height * 0.8) / (nodeCount + 1));

        const treeLayout = d3.tree()
            .size([width * 0.7, nodeCount <= 5 ? height * 0.7 : height * 0.85])
            .nodeSize([0, ySpacing])
            .separation(function(a, b) { return 3; });

        treeLayout(root);

        const mergeNodes = [];

        root.descendants().forEach(function(d) {
            if (d.data.merge_target) {
                mergeNodes.push({
                    node: d,
                    targetPath: d.data.merge_target
                });
            }

            // Spread out branching points horizontally
            if (d.children && d.children.length > 1) {
                const branchWidth = d.children.length * 80;
                d.children.forEach(function(child, i) {
                    const offset = branchWidth * (i / (d.children.length - 1) - 0.5);
                    child.x = d.x + offset;

                    function adjustDescendants(node) {
                        if (node.children) {
                            node.children.forEach(function(c) {
                                c.x += offset;
                                adjustDescendants(c);
                            });
                        }
                    }
                    adjustDescendants(child);
                });
            }
        });

        const link = svg.selectAll(".link")
            .data(root.links())
            .enter()
            .append("path")
            .attr("class", "link")
            .attr("d", function(d) {
                return "M" + d.source.x + "," + d.source.y +
                       "C" + d.source.x + "," + (d.source.y + 50) +
                       " " + d.target.x + "," + (d.target.y - 50) +
                       " " + d.target.x + "," + d.target.y;
            })
            .attr("marker-end", "url(#arrow)");

        const node = svg.selectAll(".node")
            .data(root.descendants())
            .enter()
            .append("g")
            .attr("class", function(d) {
                let classNames = "node";
                classNames += d.children ? " node--internal" : " node--leaf";
                if (d.data.merge_target) classNames += " merge-node";
                if (d.data.achievement) classNames += " achievement-node";
                return classNames;
            })
            .attr("transform", function(d) { return "translate(" + d.x + "," + d.y + ")"; })
            .on("click", function(event, d) {
                d3.selectAll(".selected-node").classed("selected-node", false);
                d3.select(this).classed("selected-node", true);
                showNodeDetails(d.data);
            });

        node.append("circle")
            .attr("r", 5);

        node.append("text")
            .attr("dy", -20)
            .attr("x", 0)
            .attr("text-anchor", "middle")
            .text(function(d) {
                const name = d.data.name || "Unnamed Node";
                return name.length > 20 ? name.substring(0, 18) + "..." : name;
            })
            .each(function(d) {
                const bbox = this.getBBox();
                const padding = 3;

                d3.select(this.parentNode).insert("rect", "text")
                    .attr("x", bbox.x - padding)
                    .attr("y", bbox.y - padding)
                    .attr("width", bbox.width + (padding * 2))
                    .attr("height", bbox.height + (padding * 2))
                    .attr("fill", d.data.achievement ? "#FFF8DC" : d.data.merge_target ? "#F0E6FF" : "white")
                    .attr("fill-opacity", 0.8)
                    .attr("rx", 3)
                    .attr("ry", 3);
            });

        function findNodeByPath(root, path) {
            let current = root;
            for (let i = 0; i < path.length; i++) {
                if (!current.children || path[i] >= current.children.length) {
                    return null;
                }
                current = current.children[path[i]];
            }
            return current;
        }

        mergeNodes.forEach(function(mergeInfo) {
            const sourceNode = mergeInfo.node;
            const targetNode = findNodeByPath(root, mergeInfo.targetPath);

            if (targetNode) {
                svg.append("path")
                    .attr("class", "merge-link")
                    .attr("d", function() {
                        return "M" + sourceNode.x + "," + sourceNode.y +
                               "C" + sourceNode.x + "," + (sourceNode.y + 100) +
                               " " + targetNode.x + "," + (targetNode.y - 100) +
                               " " + targetNode.x + "," + targetNode.y;
                    })
                    .attr("marker-end", "url(#merge-arrow)");
            }
        });

        function showNodeDetails(nodeData) {
            const detailsDiv = document.getElementById('node-details');

            let content = "<h4>" + (nodeData.name || 'Unnamed Node') + "</h4>" +
                          "<p>" + (nodeData.description || 'No description available.') + "</p>";

            if (nodeData.achievement) {
                content += '<div class="achievement-badge">' +
                           '<h4>🏆 ' + nodeData.achievement.title + '</h4>' +
                           '<p>' + nodeData.achievement.description + '</p>' +
                           '</div>';
            }

            if (nodeData.merge_target) {
                content += "<p><em>This node merges back to the main storyline.</em></p>";
            } else if (nodeData.children && nodeData.children.length > 0) {
                content += "<p><strong>Options:</strong></p><ul>";
                nodeData.children.forEach(function(child) {
                    content += "<li>" + child.name + "</li>";
                });
                content += "</ul>";
            } else {
                content += "<p><em>This is an endpoint of the story.</em></p>";
            }

            detailsDiv.innerHTML = content;
        }

        node.filter(function(d) { return !d.parent; })
            .classed("selected-node", true)
            .each(function(d) { showNodeDetails(d.data); });
    </script>
</body>
</html>
`

// D3Visualizer creates D3.js-based visualizations of story trees
type D3Visualizer struct {
	outputPath string
}

// NewD3Visualizer creates a new D3.js visualizer
func NewD3Visualizer(outputPath string) *D3Visualizer {
	return &D3Visualizer{
		outputPath: outputPath,
	}
}

// Visualize generates an HTML visualization of the story tree
func (v *D3Visualizer) Visualize(root *story.Node) error {
	html, err := Render(root)
	if err != nil {
		return err
	}

	dir := filepath.Dir(v.outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(v.outputPath, html, 0644)
}

// Render produces the visualization HTML without touching the
// filesystem.
func Render(root *story.Node) ([]byte, error) {
	if root == nil {
		return nil, errors.New("cannot visualize an empty story")
	}

	storyData, err := json.Marshal(root)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("d3").Parse(d3Template)
	if err != nil {
		return nil, err
	}

	data := struct {
		Title     string
		StoryData template.JS
		NodeCount int
	}{
		Title:     root.Name,
		StoryData: template.JS(storyData),
		NodeCount: story.Stats(root).Nodes,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
