// Package main 启动应用程序
package main

import "github.com/yeisme/photovault/pkg/cmd"

//	@title			PhotoVault API
//	@version		1.0.0
//	@description	PhotoVault 接收照片上传，写入对象存储后异步生成缩略图、提取 EXIF 元数据，并记录完整的处理事件。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com.

func main() {
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
