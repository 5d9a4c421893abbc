package entity

type ToolName string

const (
	ToolBrowserNavigate    ToolName = "browser_navigate"
	ToolBrowserClick       ToolName = "browser_click"
	ToolBrowserFill        ToolName = "browser_fill"
	ToolBrowserScroll      ToolName = "browser_scroll"
	ToolBrowserPressKey    ToolName = "browser_press_key"
	ToolBrowserExtractText ToolName = "browser_extract_text"
	ToolBrowserPageHTML    ToolName = "browser_page_html"
)

func (t ToolName) String() string {
	return string(t)
}
