package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"CDN_Endpoint_Tester_Go/internal/config"
	"CDN_Endpoint_Tester_Go/internal/datasource"
	"CDN_Endpoint_Tester_Go/internal/engine"
	"CDN_Endpoint_Tester_Go/internal/output"
	"CDN_Endpoint_Tester_Go/internal/report"
)

//go:embed web
var embeddedFS embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// Start 启动 Web 服务器
func Start(port int, cfgPath string) {
	// Create a sub-filesystem to remove the "web" prefix
	staticFS, err := fs.Sub(embeddedFS, "web")
	if err != nil {
		log.Fatalf("Failed to create sub filesystem: %v", err)
	}

	router := NewRouter(cfgPath, staticFS)

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Printf("服务器正在启动，请在浏览器中打开 http://%s", addr)

	// 尝试在默认浏览器中打开 URL
	go openBrowser(fmt.Sprintf("http://%s", addr))

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("服务器启动失败: %v", err)
	}
}

// NewRouter 组装全部路由,拆出来方便测试
func NewRouter(cfgPath string, staticFS fs.FS) *mux.Router {
	router := mux.NewRouter()
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	router.HandleFunc("/", handleIndex(staticFS)).Methods(http.MethodGet)
	router.HandleFunc("/api/config", handleConfigGet(cfgPath)).Methods(http.MethodGet)
	router.HandleFunc("/api/config", handleConfigSave(cfgPath)).Methods(http.MethodPost)
	router.HandleFunc("/api/catalog", handleCatalog()).Methods(http.MethodPost)
	router.HandleFunc("/ws/run", handleWebSocket(cfgPath))
	return router
}

func handleIndex(staticFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := staticFS.Open("index.html")
		if err != nil {
			http.Error(w, "index.html not found", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		content, err := io.ReadAll(f)
		if err != nil {
			http.Error(w, "failed to read index.html", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, "index.html", time.Now(), bytes.NewReader(content))
	}
}

func handleConfigGet(cfgPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := config.LoadConfig(cfgPath)
		if err != nil {
			http.Error(w, "Failed to load config", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cfg)
	}
}

func handleConfigSave(cfgPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var newConfig map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := saveConfigWithComments(cfgPath, newConfig); err != nil {
			http.Error(w, fmt.Sprintf("Failed to save config: %v", err), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// handleCatalog 代浏览器访问端点的目录接口,前端用它做频道选择
func handleCatalog() http.HandlerFunc {
	type catalogRequest struct {
		Endpoint   string `json:"endpoint"`
		Username   string `json:"username"`
		Password   string `json:"password"`
		CategoryID string `json:"category_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req catalogRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Endpoint == "" {
			http.Error(w, "endpoint is required", http.StatusBadRequest)
			return
		}

		xc := datasource.NewXtreamClient(req.Endpoint, req.Username, req.Password)
		active, status, err := xc.VerifyCredentials(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("验证账号失败: %v", err), http.StatusBadGateway)
			return
		}

		categories, err := xc.GetLiveCategories(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("拉取分类失败: %v", err), http.StatusBadGateway)
			return
		}
		channels, err := xc.GetLiveStreams(r.Context(), req.CategoryID)
		if err != nil {
			http.Error(w, fmt.Sprintf("拉取频道失败: %v", err), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"account_ok":     active,
			"account_status": status,
			"categories":     categories,
			"channels":       channels,
		})
	}
}

func handleWebSocket(cfgPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("WebSocket upgrade failed:", err)
			return
		}

		// 1. Wait for the initial config message from the client
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Println("WebSocket read for config failed:", err)
			return
		}

		// 先加载文件中的配置作为基础
		runConfig, err := config.LoadConfig(cfgPath)
		if err != nil {
			log.Printf("Failed to load base config: %v", err)
			conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("Error: Failed to load base config: %v", err)))
			return
		}

		// 然后用 WebSocket 发来的数据覆盖它
		// 这样，前端没有提供的字段将保留文件中的值
		if err := json.Unmarshal(msg, runConfig); err != nil {
			log.Println("Failed to unmarshal config from WebSocket:", err)
			conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("Error: Invalid config format: %v", err)))
			return
		}
		runConfig.ApplyDefaults()

		// 2. Create a context that can be cancelled if the client disconnects
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// 3. Start a separate goroutine to listen for client-side close messages
		go func() {
			defer cancel() // Cancel context if this goroutine exits
			for {
				// If ReadMessage returns an error, it means the client has disconnected.
				if _, _, err := conn.ReadMessage(); err != nil {
					log.Printf("Client disconnected: %v", err)
					break
				}
			}
		}()

		// Define a structured message for WebSocket communication
		type WebSocketMessage struct {
			Type    string      `json:"type"` // "log" or "result"
			Payload interface{} `json:"payload"`
		}

		// Create a channel to serialize all WebSocket writes
		writeChan := make(chan WebSocketMessage, 64)

		// Start a dedicated writer goroutine. This is the ONLY goroutine that writes to the connection.
		go func() {
			for msg := range writeChan {
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("WebSocket write error: %v", err)
					break
				}
			}
		}()

		// 4. Create a callback that sends progress messages to the write channel
		progressCallback := func(message string) {
			select {
			case <-ctx.Done():
				return // Don't send if client is gone
			default:
				writeChan <- WebSocketMessage{Type: "log", Payload: message}
			}
		}

		// 5. Run the engine in the main handler goroutine
		run, err := engine.Run(ctx, runConfig, progressCallback)
		if err != nil && run == nil {
			errMsg := fmt.Sprintf("引擎运行时出错: %v", err)
			progressCallback(errMsg)
			log.Println(errMsg)
		} else {
			if err != nil {
				progressCallback(fmt.Sprintf("测试提前结束: %v", err))
			}

			summaries := report.Summarize(run.Records)
			text := report.Render(run, summaries)
			select {
			case <-ctx.Done():
			default:
				writeChan <- WebSocketMessage{Type: "result", Payload: map[string]any{
					"run":     run,
					"ranking": summaries,
					"report":  text,
				}}
			}

			// Save results to files
			if len(run.Records) > 0 {
				jsonFileName := fmt.Sprintf("%s_web.json", runConfig.OutputPrefix)
				csvFileName := fmt.Sprintf("%s_web.csv", runConfig.OutputPrefix)

				go func() {
					if err := output.WriteJSONFile(jsonFileName, run, summaries); err != nil {
						log.Printf("保存 JSON 文件失败: %v", err)
						progressCallback(fmt.Sprintf("错误: 保存 %s 失败。", jsonFileName))
					} else {
						progressCallback(fmt.Sprintf("结果已保存到 %s", jsonFileName))
					}
				}()

				go func() {
					if err := output.WriteCSVFile(csvFileName, run.Records); err != nil {
						log.Printf("保存 CSV 文件失败: %v", err)
						progressCallback(fmt.Sprintf("错误: 保存 %s 失败。", csvFileName))
					} else {
						progressCallback(fmt.Sprintf("结果已保存到 %s", csvFileName))
					}
				}()

				if runConfig.WriteCharts {
					go func() {
						latencyChart := fmt.Sprintf("%s_web_latency.png", runConfig.OutputPrefix)
						throughputChart := fmt.Sprintf("%s_web_throughput.png", runConfig.OutputPrefix)
						if err := output.WriteLatencyChart(latencyChart, summaries); err != nil {
							log.Printf("保存延迟图表失败: %v", err)
						}
						if err := output.WriteThroughputChart(throughputChart, summaries); err != nil {
							log.Printf("保存吞吐量图表失败: %v", err)
						}
					}()
				}
			}
		}

		// 6. After the engine is done, close the connection
		progressCallback("--- 任务完成 ---")
		close(writeChan)                   // Close the channel to signal the writer goroutine to exit
		time.Sleep(200 * time.Millisecond) // Give writer goroutine a moment to send the last message
		conn.Close()
	}
}

func saveConfigWithComments(cfgPath string, newValues map[string]interface{}) error {
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}

	// yaml.v3 unmarshals to a document node, we need the content
	docNode := root.Content[0]

	// Iterate through the key-value pairs of the mapping node
	for i := 0; i < len(docNode.Content); i += 2 {
		keyNode := docNode.Content[i]
		valNode := docNode.Content[i+1]

		if newValue, ok := newValues[keyNode.Value]; ok {
			setNodeValue(valNode, newValue)
		}
	}

	out, err := yaml.Marshal(&root)
	if err != nil {
		return err
	}

	return os.WriteFile(cfgPath, out, 0644)
}

// openBrowser tries to open the URL in a default browser.
func openBrowser(url string) {
	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}
	if err != nil {
		log.Printf("无法自动打开浏览器: %v\n请手动打开 %s", err, url)
	}
}

// setNodeValue updates a yaml.Node's value based on the provided interface{}.
// It handles scalars, slices and string-keyed maps (e.g. the channels list).
func setNodeValue(node *yaml.Node, value interface{}) {
	if slice, isSlice := value.([]interface{}); isSlice {
		node.Kind = yaml.SequenceNode
		node.Tag = "!!seq"
		node.Content = []*yaml.Node{}
		for _, item := range slice {
			itemNode := &yaml.Node{}
			// Recursively set value for items in slice
			setNodeValue(itemNode, item)
			node.Content = append(node.Content, itemNode)
		}
		return
	}

	if m, isMap := value.(map[string]interface{}); isMap {
		node.Kind = yaml.MappingNode
		node.Tag = "!!map"
		node.Content = []*yaml.Node{}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
			valNode := &yaml.Node{}
			setNodeValue(valNode, m[k])
			node.Content = append(node.Content, keyNode, valNode)
		}
		return
	}

	// For simple scalar values
	s := fmt.Sprintf("%v", value)
	node.Value = s
	node.Kind = yaml.ScalarNode

	// Heuristic to guess the tag
	if s == "true" || s == "false" {
		node.Tag = "!!bool"
	} else if _, err := strToInt(s); err == nil {
		node.Tag = "!!int"
	} else if _, err := strToFloat(s); err == nil {
		node.Tag = "!!float"
	} else {
		node.Tag = "!!str"
	}
}

func strToFloat(s string) (float64, error) {
	var f float64
	// Use json unmarshaling to handle number parsing robustly
	return f, json.Unmarshal([]byte(s), &f)
}

func strToInt(s string) (int, error) {
	var i int
	// Use json unmarshaling to handle integer parsing robustly
	return i, json.Unmarshal([]byte(s), &i)
}
